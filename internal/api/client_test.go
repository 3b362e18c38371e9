package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/rigsync/internal/storage"
)

var _ storage.Uploader = (*Client)(nil)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{"plain", "http://localhost:5000", "http://localhost:5000"},
		{"trailing slash", "http://localhost:5000/", "http://localhost:5000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.baseURL, "secret123")
			require.NotNil(t, c)
			assert.Equal(t, tt.want, c.baseURL)
			assert.Equal(t, "secret123", c.apiKey)
			assert.NotNil(t, c.httpClient)
		})
	}
}

func TestHealthcheck(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"server error", http.StatusInternalServerError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/healthcheck", r.URL.Path)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			err := New(server.URL, "").Healthcheck()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHealthcheck_ServerDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	assert.Error(t, New(url, "").Healthcheck())
}

func TestUpload(t *testing.T) {
	form := map[string]string{}
	var content []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sessions/add", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		if !assert.NoError(t, r.ParseMultipartForm(10<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, k := range []string{"secret", "filename", "sessionName", "assetName", "convention", "duration", "tag"} {
			form[k] = r.FormValue(k)
		}
		file, _, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		content, _ = io.ReadAll(file)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "take_20240301_120000.json.gz")
	require.NoError(t, os.WriteFile(path, []byte("test content"), 0644))

	err := New(server.URL, "mysecret").Upload(path, storage.UploadMetadata{
		SessionName: "take",
		AssetName:   "TestSkeleton",
		Convention:  "fbx",
		Duration:    3600.5,
		Tag:         "mocap",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"secret":      "mysecret",
		"filename":    "take_20240301_120000.json.gz",
		"sessionName": "take",
		"assetName":   "TestSkeleton",
		"convention":  "fbx",
		"duration":    "3600.500000",
		"tag":         "mocap",
	}, form)
	assert.Equal(t, "test content", string(content))
}

func TestUpload_FileNotFound(t *testing.T) {
	err := New("http://localhost:5000", "secret").Upload("/nonexistent/file.json.gz", storage.UploadMetadata{})
	assert.Error(t, err)
}

func TestUpload_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "take.json.gz")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))

	err := New(server.URL, "wrong-secret").Upload(path, storage.UploadMetadata{})
	assert.ErrorContains(t, err, "403")
}
