package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	EndpointID          string `mapstructure:"endpoint_id"`
	ServerURL           string `mapstructure:"server_url"`
	AuthToken           string `mapstructure:"auth_token"`
	PolicyDir           string `mapstructure:"policy_dir"`
	RegistriesFile      string `mapstructure:"registries_file"`
	TickIntervalSeconds int    `mapstructure:"tick_interval_seconds"`
	ScriptWorkers       int    `mapstructure:"script_workers"`
	ScriptQueueSize     int    `mapstructure:"script_queue_size"`
	LogLevel            string `mapstructure:"log_level"`
	LogFormat           string `mapstructure:"log_format"`
	DataDir             string `mapstructure:"data_dir"`
	AuditMaxSizeMB      int    `mapstructure:"audit_max_size_mb"`
	AuditMaxBackups     int    `mapstructure:"audit_max_backups"`
}

func Default() *Config {
	return &Config{
		PolicyDir:           filepath.Join(configDir(), "policies"),
		RegistriesFile:      filepath.Join(configDir(), "registries.yaml"),
		TickIntervalSeconds: 15,
		ScriptWorkers:       4,
		ScriptQueueSize:     64,
		LogLevel:            "info",
		LogFormat:           "text",
		DataDir:             dataDir(),
		AuditMaxSizeMB:      50,
		AuditMaxBackups:     3,
	}
}

// TickInterval returns the evaluation cadence as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSeconds) * time.Second
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("monitor")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("BREEZE")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("endpoint_id", cfg.EndpointID)
	viper.Set("server_url", cfg.ServerURL)
	viper.Set("auth_token", cfg.AuthToken)
	viper.Set("policy_dir", cfg.PolicyDir)
	viper.Set("registries_file", cfg.RegistriesFile)
	viper.Set("tick_interval_seconds", cfg.TickIntervalSeconds)
	viper.Set("script_workers", cfg.ScriptWorkers)
	viper.Set("script_queue_size", cfg.ScriptQueueSize)
	viper.Set("log_level", cfg.LogLevel)
	viper.Set("log_format", cfg.LogFormat)
	viper.Set("data_dir", cfg.DataDir)
	viper.Set("audit_max_size_mb", cfg.AuditMaxSizeMB)
	viper.Set("audit_max_backups", cfg.AuditMaxBackups)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "monitor.yaml")
		if err := os.MkdirAll(configDir(), 0700); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgPath); err != nil {
		return err
	}

	// Restrict config file to owner-only access (contains auth token)
	return os.Chmod(cfgPath, 0600)
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "Breeze")
	case "darwin":
		return "/Library/Application Support/Breeze"
	default:
		return "/etc/breeze"
	}
}

func dataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "Breeze", "monitor")
	case "darwin":
		return "/Library/Application Support/Breeze/monitor"
	default:
		return "/var/lib/breeze/monitor"
	}
}
