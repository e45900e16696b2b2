package config

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Dataset
	DatasetPath      string `mapstructure:"dataset_path" yaml:"dataset_path"`
	DatasetSheet     string `mapstructure:"dataset_sheet" yaml:"dataset_sheet"`
	DatasetTable     string `mapstructure:"dataset_table" yaml:"dataset_table"`
	Delimiter        string `mapstructure:"delimiter" yaml:"delimiter" validate:"omitempty,max=2"`
	DecimalSeparator string `mapstructure:"decimal_separator" yaml:"decimal_separator"`
	MaxRows          int    `mapstructure:"max_rows" yaml:"max_rows" validate:"gte=0"`

	// Model
	ModelPath      string `mapstructure:"model_path" yaml:"model_path"`
	ModelInfoPath  string `mapstructure:"model_info_path" yaml:"model_info_path" validate:"required_with=ModelPath"`
	ImportanceTopN int    `mapstructure:"importance_top_n" yaml:"importance_top_n" validate:"gte=1,lte=50"`
	FallbackScope  string `mapstructure:"fallback_scope" yaml:"fallback_scope" validate:"oneof=view store"`

	// Analytics
	TopK             int `mapstructure:"top_k" yaml:"top_k" validate:"gte=1,lte=100"`
	CompareMaxRoutes int `mapstructure:"compare_max_routes" yaml:"compare_max_routes" validate:"gte=1,lte=5"`

	// HTTP API
	ListenAddr     string   `mapstructure:"listen_addr" yaml:"listen_addr" validate:"required,hostname_port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins" validate:"dive,required"`
}

var validate = validator.New()

// Validate checks value ranges and formats.
func (c *Global) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	switch c.DecimalSeparator {
	case "", ".", ",":
	default:
		return fmt.Errorf("invalid configuration: decimal_separator must be \".\" or \",\", got %q", c.DecimalSeparator)
	}
	return nil
}

// DecimalRune returns the configured decimal separator; zero means detect per value.
func (c *Global) DecimalRune() rune {
	r, _ := utf8.DecodeRuneInString(c.DecimalSeparator)
	if r == utf8.RuneError {
		return 0
	}
	return r
}

// DelimiterRune returns the configured CSV delimiter; zero means detect from the extension.
func (c *Global) DelimiterRune() rune {
	if c.Delimiter == "" {
		return 0
	}
	if c.Delimiter == `\t` {
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

// Dir returns ~/.tardis.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".tardis"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.tardis/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env (TARDIS_*, including values from ./.env) > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	// .env is optional; existing environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TARDIS")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("dataset_path", "")
	v.SetDefault("dataset_sheet", "")
	v.SetDefault("dataset_table", "trips")
	v.SetDefault("delimiter", "")
	v.SetDefault("decimal_separator", "")
	v.SetDefault("max_rows", 0)
	v.SetDefault("model_path", "")
	v.SetDefault("model_info_path", "")
	v.SetDefault("importance_top_n", 5)
	v.SetDefault("fallback_scope", "view")
	v.SetDefault("top_k", 15)
	v.SetDefault("compare_max_routes", 5)
	v.SetDefault("listen_addr", "127.0.0.1:8080")
	v.SetDefault("allowed_origins", []string{"http://localhost:5173"})

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
