package engine

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config drives engine construction. Every field has a default so a
// missing config file still yields a working engine.
type Config struct {
	DataDir            string `mapstructure:"data_dir"`
	BufferPoolCapacity int    `mapstructure:"buffer_pool_capacity"`
	StatementCacheSize int    `mapstructure:"statement_cache_size"`
	DefaultDatabase    string `mapstructure:"default_database"`
}

func DefaultConfig() *Config {
	return &Config{
		DataDir:            "data",
		BufferPoolCapacity: 128,
		StatementCacheSize: 256,
		DefaultDatabase:    "",
	}
}

// LoadConfig reads a yaml config file, layering it over the defaults.
// An empty path returns the defaults untouched.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("buffer_pool_capacity", cfg.BufferPoolCapacity)
	v.SetDefault("statement_cache_size", cfg.StatementCacheSize)
	v.SetDefault("default_database", cfg.DefaultDatabase)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.BufferPoolCapacity < 1 {
		return nil, fmt.Errorf("buffer_pool_capacity must be positive, got %d", cfg.BufferPoolCapacity)
	}
	if cfg.StatementCacheSize < 1 {
		return nil, fmt.Errorf("statement_cache_size must be positive, got %d", cfg.StatementCacheSize)
	}
	return cfg, nil
}
