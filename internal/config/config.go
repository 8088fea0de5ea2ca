package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	PersistenceMemory = "memory"
	PersistenceSqlite = "sqlite"
)

type Config struct {
	Server      Server      `yaml:"server" json:"server"` // configuration of the public REST server
	Name        string      `yaml:"name" json:"name" env:"APP_NAME" env-default:"zencmmn"`
	Persistence Persistence `yaml:"persistence" json:"persistence"`
	Tracing     Tracing     `yaml:"tracing" json:"tracing"`
	Script      Script      `yaml:"script" json:"script"`
	Exporter    Exporter    `yaml:"exporter" json:"exporter"`
	History     History     `yaml:"history" json:"history"`
}

type Server struct {
	Context string `yaml:"context" json:"context" env:"REST_API_CONTEXT" env-default:"/"`
	Addr    string `yaml:"addr" json:"addr" env:"REST_API_ADDR" env-default:":8080"`
	// DisableValidation turns off request validation against the bundled OpenAPI document
	DisableValidation bool     `yaml:"disableValidation" json:"disableValidation" env:"REST_API_DISABLE_VALIDATION"`
	CorsOrigins       []string `yaml:"corsOrigins" json:"corsOrigins" env:"REST_API_CORS_ORIGINS" env-separator:","`
}

type Persistence struct {
	Type   string `yaml:"type" json:"type" env:"PERSISTENCE_TYPE" env-default:"memory"`
	Sqlite Sqlite `yaml:"sqlite" json:"sqlite"`
}

type Sqlite struct {
	Path string `yaml:"path" json:"path" env:"SQLITE_PATH" env-default:"zencmmn.db"`
	// DefinitionCacheSize is the number of parsed case definitions kept in memory
	DefinitionCacheSize int           `yaml:"definitionCacheSize" json:"definitionCacheSize" env:"SQLITE_DEFINITION_CACHE_SIZE" env-default:"200"`
	DefinitionCacheTTL  time.Duration `yaml:"definitionCacheTTL" json:"definitionCacheTTL" env:"SQLITE_DEFINITION_CACHE_TTL" env-default:"1h"`
}

type Tracing struct {
	Enabled  bool   `yaml:"enabled" json:"enabled" env:"OTEL_ENABLED"`
	Endpoint string `yaml:"endpoint" json:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4318"`
	Name     string `yaml:"name" json:"name" env:"OTEL_SERVICE_NAME"`

	// SampleRatio of root spans that are recorded, parent decisions are always followed
	SampleRatio float64 `yaml:"sampleRatio" json:"sampleRatio" env:"OTEL_TRACES_SAMPLER_ARG" env-default:"1"`

	// TransferHeaders are request headers copied into the request context and span attributes
	TransferHeaders []string `yaml:"transferHeaders" json:"transferHeaders" env:"OTEL_TRANSFER_HEADERS" env-separator:","`
}

type Script struct {
	MinVms int `yaml:"minVms" json:"minVms" env:"SCRIPT_MIN_VMS" env-default:"1"`
	MaxVms int `yaml:"maxVms" json:"maxVms" env:"SCRIPT_MAX_VMS" env-default:"4"`
}

type Exporter struct {
	// Log writes every engine event to the application log
	Log bool `yaml:"log" json:"log" env:"EXPORTER_LOG"`
}

type History struct {
	// CleanupInterval of zero disables the periodic history cleanup
	CleanupInterval time.Duration `yaml:"cleanupInterval" json:"cleanupInterval" env:"HISTORY_CLEANUP_INTERVAL"`
}

func (c Config) defaults() Config {
	if c.Tracing.Name == "" {
		c.Tracing.Name = c.Name
	}
	if c.Script.MaxVms < c.Script.MinVms {
		c.Script.MaxVms = c.Script.MinVms
	}
	return c
}

// Validate reports every invalid setting at once
func (c Config) Validate() error {
	var errs []error
	switch c.Persistence.Type {
	case PersistenceMemory, PersistenceSqlite:
	default:
		errs = append(errs, fmt.Errorf("unknown persistence type %q", c.Persistence.Type))
	}
	if c.Persistence.Type == PersistenceSqlite && c.Persistence.Sqlite.Path == "" {
		errs = append(errs, errors.New("sqlite path is empty"))
	}
	if c.Script.MinVms < 1 {
		errs = append(errs, fmt.Errorf("script.minVms must be at least 1, got %d", c.Script.MinVms))
	}
	if c.History.CleanupInterval < 0 {
		errs = append(errs, errors.New("history.cleanupInterval must not be negative"))
	}
	return errors.Join(errs...)
}

// Load reads fileName when it exists and the environment otherwise.
// ENV variables override values from the file.
func Load(fileName string) (Config, error) {
	c := Config{}
	var err error
	if _, perr := os.Stat(fileName); errors.Is(perr, os.ErrNotExist) {
		err = cleanenv.ReadEnv(&c)
	} else {
		err = cleanenv.ReadConfig(fileName, &c)
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read configuration: %w", err)
	}
	c = c.defaults()
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

// FileName returns CONFIG_FILE or conf.yaml in the working directory
func FileName() string {
	if confFile := os.Getenv("CONFIG_FILE"); confFile != "" {
		return confFile
	}
	wd, err := os.Getwd()
	if err != nil {
		return "conf.yaml"
	}
	return fmt.Sprintf("%s/conf.yaml", wd)
}

func InitConfig() Config {
	c, err := Load(FileName())
	if err != nil {
		fmt.Printf("Error occurred while reading the configuration: %s\n", err)
		panic(err)
	}
	return c
}
