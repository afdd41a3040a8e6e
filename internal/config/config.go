package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the addon folder.
const FileName = "vehicle_extractor.cfg.json"

// TriggerConfig holds key polling settings
type TriggerConfig struct {
	Key          string        `json:"key" mapstructure:"key"`
	Mode         string        `json:"mode" mapstructure:"mode"`
	PollInterval time.Duration `json:"pollInterval" mapstructure:"pollInterval"`
	AutoStart    bool          `json:"autoStart" mapstructure:"autoStart"`
}

// OutputConfig holds the literal output file settings
type OutputConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// ExtractConfig selects the snapshot policy
type ExtractConfig struct {
	Policy string `json:"policy" mapstructure:"policy"`
}

// SQLiteConfig holds SQLite archive settings
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// WebSocketConfig holds websocket archive settings
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// MemoryConfig holds in-memory archive settings
type MemoryConfig struct {
	Limit     int    `json:"limit" mapstructure:"limit"`
	ExportDir string `json:"exportDir" mapstructure:"exportDir"`
	Compress  bool   `json:"compress" mapstructure:"compress"`
}

// StorageConfig holds extraction archive settings
type StorageConfig struct {
	Type          string          `json:"type" mapstructure:"type"`
	FlushInterval time.Duration   `json:"flushInterval" mapstructure:"flushInterval"`
	Memory        MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite        SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	WebSocket     WebSocketConfig `json:"websocket" mapstructure:"websocket"`
}

// DBConfig holds PostgreSQL connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// InfluxConfig holds InfluxDB metrics settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// APIConfig holds archive server HTTP settings
type APIConfig struct {
	ServerURL     string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey        string `json:"apiKey" mapstructure:"apiKey"`
	UploadExports bool   `json:"uploadExports" mapstructure:"uploadExports"`
}

// StatusConfig controls the status file writer
type StatusConfig struct {
	Interval time.Duration `json:"interval" mapstructure:"interval"`
	File     string        `json:"file" mapstructure:"file"`
}

// GraylogConfig holds GELF log shipping settings
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./vehextlogs")

	viper.SetDefault("trigger.key", "F9")
	viper.SetDefault("trigger.mode", "edge")
	viper.SetDefault("trigger.pollInterval", "16ms")
	viper.SetDefault("trigger.autoStart", true)

	viper.SetDefault("output.path", "VehiclesDataOutput.cs")
	viper.SetDefault("extract.policy", "dispatch")

	viper.SetDefault("storage.type", "none")
	viper.SetDefault("storage.flushInterval", "2s")
	viper.SetDefault("storage.memory.limit", 256)
	viper.SetDefault("storage.memory.exportDir", "")
	viper.SetDefault("storage.memory.compress", true)
	viper.SetDefault("storage.sqlite.path", "vehicle_extractor.db")
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/api/extractions")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "vehicles")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "vehicle-extractor")
	viper.SetDefault("influx.bucket", "extractions")

	viper.SetDefault("api.serverUrl", "")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.uploadExports", false)

	viper.SetDefault("status.interval", "0s")
	viper.SetDefault("status.file", "status.json")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")
}

// UseDefaults applies default values without reading a file.
func UseDefaults() {
	setDefaults()
}

// GetTriggerConfig returns the trigger settings.
func GetTriggerConfig() TriggerConfig {
	return TriggerConfig{
		Key:          viper.GetString("trigger.key"),
		Mode:         viper.GetString("trigger.mode"),
		PollInterval: viper.GetDuration("trigger.pollInterval"),
		AutoStart:    viper.GetBool("trigger.autoStart"),
	}
}

// GetOutputConfig returns the output file settings.
func GetOutputConfig() OutputConfig {
	return OutputConfig{Path: viper.GetString("output.path")}
}

// GetExtractConfig returns the snapshot policy settings.
func GetExtractConfig() ExtractConfig {
	return ExtractConfig{Policy: viper.GetString("extract.policy")}
}

// GetStorageConfig returns the archive settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:          viper.GetString("storage.type"),
		FlushInterval: viper.GetDuration("storage.flushInterval"),
		Memory: MemoryConfig{
			Limit:     viper.GetInt("storage.memory.limit"),
			ExportDir: viper.GetString("storage.memory.exportDir"),
			Compress:  viper.GetBool("storage.memory.compress"),
		},
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
	}
}

// GetDBConfig returns the PostgreSQL settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Protocol: viper.GetString("influx.protocol"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetAPIConfig returns the archive server HTTP settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL:     viper.GetString("api.serverUrl"),
		APIKey:        viper.GetString("api.apiKey"),
		UploadExports: viper.GetBool("api.uploadExports"),
	}
}

// GetStatusConfig returns the status file settings.
func GetStatusConfig() StatusConfig {
	return StatusConfig{
		Interval: viper.GetDuration("status.interval"),
		File:     viper.GetString("status.file"),
	}
}

// GetGraylogConfig returns the GELF settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
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
