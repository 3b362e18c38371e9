package config

import (
	"fmt"
	"time"

	"github.com/OCAP2/rigsync/internal/calibration"
	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "rigsync.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds in-memory SQLite backend settings
type SQLiteConfig struct {
	OutputPath   string        `json:"outputPath" mapstructure:"outputPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// WebSocketConfig holds streaming backend settings
type WebSocketConfig struct {
	URL     string `json:"url" mapstructure:"url"`
	Secret  string `json:"secret" mapstructure:"secret"`
	Timeout time.Duration
}

// StorageConfig selects and configures the session storage backend
type StorageConfig struct {
	Type      string
	Memory    MemoryConfig
	SQLite    SQLiteConfig
	WebSocket WebSocketConfig
}

// OTelConfig configures the OpenTelemetry log provider
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// MQTTConfig configures the tracking source
type MQTTConfig struct {
	Enabled     bool
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
}

// RigConfig describes the source rig and its default target
type RigConfig struct {
	Convention      string
	AssetName       string
	Height          float64
	UseFootTracking bool
	Target          string
	TargetHeight    float64
}

// ExportConfig configures the Maya curve export
type ExportConfig struct {
	Dir         string
	Joints      []string
	Translation bool
	Rotation    bool
	Scale       bool
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./rigsynclogs")

	viper.SetDefault("rig.convention", "fbx")
	viper.SetDefault("rig.assetName", "TestSkeleton")
	viper.SetDefault("rig.height", 1.7)
	viper.SetDefault("rig.useFootTracking", false)
	viper.SetDefault("rig.target", "Avatar")
	viper.SetDefault("rig.targetHeight", 1.7)

	viper.SetDefault("calibration.elbowDistanceCoff", 0.28)
	viper.SetDefault("calibration.armDistanceCoff", 0.05)
	viper.SetDefault("calibration.shoulderOffsetX", 0.1)
	viper.SetDefault("calibration.shoulderOffsetY", 0.05)
	viper.SetDefault("calibration.neckOffset", 0.17)
	viper.SetDefault("calibration.hipOffset", 0.8)
	viper.SetDefault("calibration.upperLegHorizontalOffset", 0.1)
	viper.SetDefault("calibration.upperLegVerticalOffset", 0.1)
	viper.SetDefault("calibration.lowerLegDistanceCoff", 0.5)

	viper.SetDefault("tick.interval", "33ms")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.outputPath", "./recordings/rigsync.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/api/v1/stream")
	viper.SetDefault("storage.websocket.secret", "")
	viper.SetDefault("storage.websocket.timeout", "10s")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "rigsync")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "rigsync-metrics")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.clientId", "rigsync")
	viper.SetDefault("mqtt.topicPrefix", "rigsync/tracking")
	viper.SetDefault("mqtt.qos", 0)

	viper.SetDefault("export.dir", "./curves")
	viper.SetDefault("export.joints", []string{})
	viper.SetDefault("export.translation", true)
	viper.SetDefault("export.rotation", true)
	viper.SetDefault("export.scale", false)

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "rigsync")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("api.serverUrl", "")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.uploadTag", "")

	viper.SetDefault("monitor.interval", "1s")
	viper.SetDefault("monitor.statusFile", "status.json")

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			OutputPath:   viper.GetString("storage.sqlite.outputPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		WebSocket: WebSocketConfig{
			URL:     viper.GetString("storage.websocket.url"),
			Secret:  viper.GetString("storage.websocket.secret"),
			Timeout: viper.GetDuration("storage.websocket.timeout"),
		},
	}
}

// GetOTelConfig returns the telemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetMQTTConfig returns the tracking source settings.
func GetMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Enabled:     viper.GetBool("mqtt.enabled"),
		Broker:      viper.GetString("mqtt.broker"),
		ClientID:    viper.GetString("mqtt.clientId"),
		TopicPrefix: viper.GetString("mqtt.topicPrefix"),
		QoS:         byte(viper.GetUint("mqtt.qos")),
	}
}

// GetRigConfig returns the source and target rig settings.
func GetRigConfig() RigConfig {
	return RigConfig{
		Convention:      viper.GetString("rig.convention"),
		AssetName:       viper.GetString("rig.assetName"),
		Height:          viper.GetFloat64("rig.height"),
		UseFootTracking: viper.GetBool("rig.useFootTracking"),
		Target:          viper.GetString("rig.target"),
		TargetHeight:    viper.GetFloat64("rig.targetHeight"),
	}
}

// GetExportConfig returns the curve export settings.
func GetExportConfig() ExportConfig {
	return ExportConfig{
		Dir:         viper.GetString("export.dir"),
		Joints:      viper.GetStringSlice("export.joints"),
		Translation: viper.GetBool("export.translation"),
		Rotation:    viper.GetBool("export.rotation"),
		Scale:       viper.GetBool("export.scale"),
	}
}

// GetCalibrationConfig returns the calibration coefficients.
func GetCalibrationConfig() (calibration.Params, error) {
	var p calibration.Params
	if err := viper.UnmarshalKey("calibration", &p); err != nil {
		return p, fmt.Errorf("decoding calibration config: %w", err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("invalid calibration config: %w", err)
	}
	return p, nil
}
