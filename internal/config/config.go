package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Evaluator struct {
		URL     string `yaml:"url"`
		APIKey  string `yaml:"api_key"`
		Timeout string `yaml:"timeout"`
	} `yaml:"evaluator"`
	Questions struct {
		URL string `yaml:"url"`
		TTL string `yaml:"ttl"`
	} `yaml:"questions"`
	Interview struct {
		// PersistIntervalSeconds bounds snapshot write volume while the
		// countdown runs. Losing a few seconds of timer precision across a
		// crash is acceptable; losing an accepted answer is not.
		PersistIntervalSeconds int `yaml:"persist_interval_seconds"`
	} `yaml:"interview"`
}

// Load reads YAML config from path. A .env file, if present, is loaded first
// so ${VAR} references and library defaults can pick it up.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, err
	}
	if cfg.Evaluator.APIKey == "" {
		cfg.Evaluator.APIKey = os.Getenv("EVALUATOR_API_KEY")
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty or
// malformed.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
