package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/rigsync/internal/calibration"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"rig": { "assetName": "Actor" },
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "Actor", viper.GetString("rig.assetName"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./rigsynclogs", viper.GetString("logsDir"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "postgres", viper.GetString("db.username"))
	assert.Equal(t, "postgres", viper.GetString("db.password"))
	assert.Equal(t, "rigsync", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "rigsync-metrics", viper.GetString("influx.org"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "./recordings", viper.GetString("storage.memory.outputDir"))
	assert.Equal(t, true, viper.GetBool("storage.memory.compressOutput"))
	assert.Equal(t, "3m", viper.GetString("storage.sqlite.dumpInterval"))
	assert.Equal(t, 33*time.Millisecond, GetDuration("tick.interval"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "rigsync", viper.GetString("otel.serviceName"))
	assert.Equal(t, "5s", viper.GetString("otel.batchTimeout"))
	assert.Equal(t, "", viper.GetString("otel.endpoint"))
	assert.Equal(t, true, viper.GetBool("otel.insecure"))
	assert.Equal(t, "", viper.GetString("api.serverUrl"))
	assert.Equal(t, time.Second, GetDuration("monitor.interval"))
	assert.Equal(t, "status.json", viper.GetString("monitor.statusFile"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStorageConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, "./recordings", cfg.Memory.OutputDir)
	assert.Equal(t, true, cfg.Memory.CompressOutput)
	assert.Equal(t, "./recordings/rigsync.db", cfg.SQLite.OutputPath)
	assert.Equal(t, 3*time.Minute, cfg.SQLite.DumpInterval)
	assert.Equal(t, "ws://localhost:5000/api/v1/stream", cfg.WebSocket.URL)
	assert.Equal(t, 10*time.Second, cfg.WebSocket.Timeout)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"storage": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "outputPath": "/tmp/rig.db", "dumpInterval": "10m" },
			"websocket": { "url": "ws://example:9000/s", "secret": "s3cret" }
		}
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, false, sc.Memory.CompressOutput)
	assert.Equal(t, "/tmp/rig.db", sc.SQLite.OutputPath)
	assert.Equal(t, 10*time.Minute, sc.SQLite.DumpInterval)
	assert.Equal(t, "ws://example:9000/s", sc.WebSocket.URL)
	assert.Equal(t, "s3cret", sc.WebSocket.Secret)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetOTelConfig()
	assert.Equal(t, false, cfg.Enabled)
	assert.Equal(t, "rigsync", cfg.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.Equal(t, "", cfg.Endpoint)
	assert.Equal(t, true, cfg.Insecure)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"batchTimeout": "30s",
			"endpoint": "localhost:4317",
			"insecure": false
		}
	}`)))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4317", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}

func TestGetMQTTConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"mqtt": { "enabled": true, "broker": "tcp://broker:1883", "qos": 1 }
	}`)))

	mc := GetMQTTConfig()
	assert.Equal(t, true, mc.Enabled)
	assert.Equal(t, "tcp://broker:1883", mc.Broker)
	assert.Equal(t, "rigsync", mc.ClientID)
	assert.Equal(t, "rigsync/tracking", mc.TopicPrefix)
	assert.Equal(t, byte(1), mc.QoS)
}

func TestGetRigConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"rig": { "convention": "bvh", "height": 1.82, "useFootTracking": true }
	}`)))

	rc := GetRigConfig()
	assert.Equal(t, "bvh", rc.Convention)
	assert.Equal(t, "TestSkeleton", rc.AssetName)
	assert.InDelta(t, 1.82, rc.Height, 1e-12)
	assert.Equal(t, true, rc.UseFootTracking)
	assert.Equal(t, "Avatar", rc.Target)
	assert.InDelta(t, 1.7, rc.TargetHeight, 1e-12)
}

func TestGetExportConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"export": { "dir": "/tmp/curves", "joints": ["A_Hips", "A_Head"], "scale": true }
	}`)))

	ec := GetExportConfig()
	assert.Equal(t, "/tmp/curves", ec.Dir)
	assert.Equal(t, []string{"A_Hips", "A_Head"}, ec.Joints)
	assert.Equal(t, true, ec.Translation)
	assert.Equal(t, true, ec.Rotation)
	assert.Equal(t, true, ec.Scale)
}

func TestGetCalibrationConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Cleanup(viper.Reset)
		require.NoError(t, Load(writeConfig(t, `{}`)))

		p, err := GetCalibrationConfig()
		require.NoError(t, err)
		assert.Equal(t, calibration.DefaultParams(), p)
	})

	t.Run("override", func(t *testing.T) {
		t.Cleanup(viper.Reset)
		require.NoError(t, Load(writeConfig(t, `{"calibration": {"hipOffset": 0.75}}`)))

		p, err := GetCalibrationConfig()
		require.NoError(t, err)
		assert.InDelta(t, 0.75, p.HipOffset, 1e-12)
		assert.InDelta(t, 0.28, p.ElbowDistanceCoff, 1e-12)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Cleanup(viper.Reset)
		require.NoError(t, Load(writeConfig(t, `{"calibration": {"elbowDistanceCoff": 1.5}}`)))

		_, err := GetCalibrationConfig()
		assert.ErrorContains(t, err, "elbowDistanceCoff")
	})
}
