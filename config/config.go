package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kfloy/apron/core/metrics"
	"github.com/kfloy/apron/core/model"
	"github.com/kfloy/apron/infra/mqtt"
)

type Config struct {
	Settings model.OperationalSettings `json:"settings"`
	MQTT     mqtt.Config               `json:"mqtt"`
	Metrics  metrics.Config            `json:"metrics"`
	Results  ResultsConfig             `json:"results"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("APRON_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "apron_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Settings.SetDefaults()
	cfg.Results.SetDefaults()
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Results.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
