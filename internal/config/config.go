// Package config loads statement-agent settings from defaults, an optional
// YAML file and STMT_ environment variables, in increasing precedence.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// DefaultFile is read when no config path is given. It may be absent.
const DefaultFile = "statement-agent.yaml"

const envPrefix = "STMT_"

// Generator kinds.
const (
	GeneratorTemplate = "template"
	GeneratorClaude   = "claude"
)

var defaults = []byte(`
loop:
  max_iters: 3
  max_diffs: 10
paths:
  data_dir: data
  parsers_dir: custom_parsers
  debug_dir: debug
  history: .statement-agent/history.db
debug:
  workbook: false
generator:
  kind: template
  model: claude-sonnet-4-5-20250929
server:
  addr: ":8080"
`)

type Config struct {
	Loop      LoopConfig      `koanf:"loop"`
	Paths     PathsConfig     `koanf:"paths"`
	Debug     DebugConfig     `koanf:"debug"`
	Generator GeneratorConfig `koanf:"generator"`
	Server    ServerConfig    `koanf:"server"`
}

type LoopConfig struct {
	MaxIters int `koanf:"max_iters"`
	MaxDiffs int `koanf:"max_diffs"`
}

type PathsConfig struct {
	DataDir    string `koanf:"data_dir"`
	ParsersDir string `koanf:"parsers_dir"`
	DebugDir   string `koanf:"debug_dir"`
	History    string `koanf:"history"`
}

type DebugConfig struct {
	// Workbook also writes an xlsx with the differing cells highlighted.
	Workbook bool `koanf:"workbook"`
}

type GeneratorConfig struct {
	Kind   string `koanf:"kind"`
	Model  string `koanf:"model"`
	APIKey string `koanf:"api_key"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// Load builds the configuration. A .env file in the working directory is
// applied to the process environment first. An empty path reads DefaultFile
// when it exists; an explicit path must exist.
//
// Environment keys map onto the first nesting level only:
//
//	STMT_PATHS_DATA_DIR   -> paths.data_dir
//	STMT_LOOP_MAX_ITERS   -> loop.max_iters
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(defaults), yaml.Parser()); err != nil {
		return nil, errors.Wrap(err, "load defaults")
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "load environment")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if cfg.Generator.APIKey == "" {
		cfg.Generator.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	parts := strings.SplitN(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", 2)
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

func (c *Config) Validate() error {
	if c.Loop.MaxIters < 1 {
		return errors.Errorf("loop.max_iters must be at least 1, got %d", c.Loop.MaxIters)
	}
	if c.Loop.MaxDiffs < 1 {
		return errors.Errorf("loop.max_diffs must be at least 1, got %d", c.Loop.MaxDiffs)
	}
	switch c.Generator.Kind {
	case GeneratorTemplate, GeneratorClaude:
	default:
		return errors.Errorf("generator.kind must be %q or %q, got %q", GeneratorTemplate, GeneratorClaude, c.Generator.Kind)
	}
	if c.Paths.DataDir == "" || c.Paths.ParsersDir == "" {
		return errors.New("paths.data_dir and paths.parsers_dir are required")
	}
	return nil
}
