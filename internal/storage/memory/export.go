package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/OCAP2/rigsync/internal/config"
	v1 "github.com/OCAP2/rigsync/internal/storage/memory/export/v1"
	"github.com/OCAP2/rigsync/pkg/core"
)

// exportJSON writes the session data to a JSON file, gzipped when configured
func (b *Backend) exportJSON() error {
	path, err := WriteExport(b.cfg, *b.session, v1.Build(b.sessionData()))
	if err != nil {
		return err
	}
	b.lastExportPath = path
	return nil
}

// WriteExport writes export to cfg.OutputDir as <name>_<start>.json, adding
// .gz when cfg.CompressOutput is set. It returns the written path.
func WriteExport(cfg config.MemoryConfig, s core.Session, export v1.Export) (string, error) {
	// Build filename
	name := strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_").Replace(s.Name)
	if name == "" {
		name = "session"
	}
	timestamp := s.StartTime.Format("20060102_150405")

	filename := fmt.Sprintf("%s_%s.json", name, timestamp)
	if cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(cfg.OutputDir, filename)

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return "", err
	}
	return outputPath, nil
}

func writeJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	encoder := json.NewEncoder(gzWriter)
	if err := encoder.Encode(data); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return gzWriter.Close()
}
