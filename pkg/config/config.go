package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/tunogya/seqprep/pkg/logger"
	"github.com/tunogya/seqprep/pkg/scale"
)

type Config struct {
	Log     logger.Config `yaml:"log"`
	Data    DataConfig    `yaml:"data"`
	Prepare PrepareConfig `yaml:"prepare"`
	Scaler  ScalerConfig  `yaml:"scaler"`
	DuckDB  DuckDBConfig  `yaml:"duckdb"`
	NATS    NATSConfig    `yaml:"nats"`
	Milvus  MilvusConfig  `yaml:"milvus"`
}

type DataConfig struct {
	CSVPath      string   `yaml:"csv_path"`
	Symbol       string   `yaml:"symbol" default:"BTCUSDT" validate:"required"`
	Timeframe    string   `yaml:"timeframe" default:"1d" validate:"required"`
	Fields       []string `yaml:"fields" default:"[\"close\"]" validate:"min=1,dive,required"`
	TargetFields []string `yaml:"target_fields" default:"[\"close\"]" validate:"min=1,dive,required"`
}

type PrepareConfig struct {
	SeqLength      int     `yaml:"seq_length" default:"30" validate:"gte=1"`
	TestFraction   float64 `yaml:"test_fraction" default:"0.2" validate:"gte=0,lt=1"`
	ValFraction    float64 `yaml:"val_fraction" default:"0.2" validate:"gte=0,lt=1"`
	FitScope       string  `yaml:"fit_scope" default:"train" validate:"oneof=train all"`
	Workers        int     `yaml:"workers" default:"4" validate:"gte=1"`
	FeatureVersion int     `yaml:"feature_version" default:"1" validate:"gte=1"`
}

type ScalerConfig struct {
	Kind string  `yaml:"kind" default:"minmax" validate:"oneof=minmax standard"`
	Low  float64 `yaml:"low" default:"0"`
	High float64 `yaml:"high" default:"1"`
}

// Scale converts the section into a scale.Config
func (s ScalerConfig) Scale() scale.Config {
	return scale.Config{Kind: scale.Kind(s.Kind), Low: s.Low, High: s.High}
}

type DuckDBConfig struct {
	Path string `yaml:"path" default:"seqprep.duckdb"`
}

type NATSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url" default:"nats://localhost:4222" validate:"required_if=Enabled true"`
	StreamName string `yaml:"stream_name" default:"seqprep"`
	BatchSize  int    `yaml:"batch_size" default:"500" validate:"gte=1"`

	AckWait    time.Duration `yaml:"ack_wait" default:"30s"`
	MaxDeliver int           `yaml:"max_deliver" default:"3" validate:"gte=1"`
}

type MilvusConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Address    string `yaml:"address" default:"localhost:19530" validate:"required_if=Enabled true"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Collection string `yaml:"collection" default:"seq_windows"`
	Shards     int    `yaml:"shards" default:"2" validate:"gte=1"`
	BatchSize  int    `yaml:"batch_size" default:"1000" validate:"gte=1"`
	TopK       int    `yaml:"top_k" default:"10" validate:"gte=1"`
	Nlist      int    `yaml:"nlist" default:"128" validate:"gte=1"`
	Recreate   bool   `yaml:"recreate"` // drop previously indexed windows first
}

var validate = validator.New()

// Default returns the configuration with every default applied
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads a YAML configuration file on top of the defaults.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SEQPREP_CSV"); v != "" {
		c.Data.CSVPath = v
	}
	if v := os.Getenv("SEQPREP_SYMBOL"); v != "" {
		c.Data.Symbol = v
	}
	if v := os.Getenv("SEQPREP_SEQ_LENGTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("SEQPREP_SEQ_LENGTH: %w", err)
		}
		c.Prepare.SeqLength = n
	}
	if v := os.Getenv("SEQPREP_DUCKDB_PATH"); v != "" {
		c.DuckDB.Path = v
	}
	if v := os.Getenv("SEQPREP_NATS_URL"); v != "" {
		c.NATS.URL = v
		c.NATS.Enabled = true
	}
	if v := os.Getenv("SEQPREP_MILVUS_ADDR"); v != "" {
		c.Milvus.Address = v
		c.Milvus.Enabled = true
	}
	if v := os.Getenv("SEQPREP_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks struct tags and cross-field rules
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return flatten(err)
	}

	if c.Scaler.Kind == string(scale.KindMinMax) && !(c.Scaler.Low < c.Scaler.High) {
		return fmt.Errorf("scaler.low (%v) must be below scaler.high (%v)", c.Scaler.Low, c.Scaler.High)
	}

	fields := make(map[string]bool, len(c.Data.Fields))
	for _, f := range c.Data.Fields {
		if fields[f] {
			return fmt.Errorf("data.fields: duplicate field %q", f)
		}
		fields[f] = true
	}
	for _, f := range c.Data.TargetFields {
		if !fields[f] {
			return fmt.Errorf("data.target_fields: %q is not in data.fields", f)
		}
	}
	return nil
}

func flatten(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, message(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func message(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
