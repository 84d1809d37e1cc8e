// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"lab-rig-service/internal/model"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Security    SecurityConfig    `mapstructure:"security"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Experiment  ExperimentConfig  `mapstructure:"experiment"`
	Instruments InstrumentsConfig `mapstructure:"instruments"`
	App         AppConfig         `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TLS             TLSConfig     `mapstructure:"tls"`
}

// TLSConfig represents TLS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// DatabaseConfig represents database configuration. When disabled, profiles and run
// history are not persisted.
type DatabaseConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	DBName         string        `mapstructure:"dbname"`
	SSLMode        string        `mapstructure:"sslmode"`
	MaxOpenConns   int           `mapstructure:"max_open_conns"`
	MaxIdleConns   int           `mapstructure:"max_idle_conns"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	MigrationsPath string        `mapstructure:"migrations_path"`

	// Readings of runs that ended longer ago are pruned. Zero keeps everything.
	ReadingRetention time.Duration `mapstructure:"reading_retention"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// ExperimentConfig controls the run loop and its local outputs
type ExperimentConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	OutputDir       string        `mapstructure:"output_dir"`
	CSVEnabled      bool          `mapstructure:"csv_enabled"`
	IntentQueueSize int           `mapstructure:"intent_queue_size"`
	TickTimeout     time.Duration `mapstructure:"tick_timeout"`
}

// InstrumentConfig is the serial wiring of one instrument
type InstrumentConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Port        string        `mapstructure:"port"`
	BaudRate    int           `mapstructure:"baud_rate"`
	DataBits    int           `mapstructure:"data_bits"`
	StopBits    int           `mapstructure:"stop_bits"`
	Parity      string        `mapstructure:"parity"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	Channel     int           `mapstructure:"channel"`
}

// InstrumentsConfig holds one entry per instrument
type InstrumentsConfig struct {
	PSU     InstrumentConfig `mapstructure:"psu"`
	Pump    InstrumentConfig `mapstructure:"pump"`
	MFC     InstrumentConfig `mapstructure:"mfc"`
	Stirrer InstrumentConfig `mapstructure:"stirrer"`
}

// For returns the entry of the given instrument
func (c InstrumentsConfig) For(kind model.InstrumentKind) (InstrumentConfig, bool) {
	switch kind {
	case model.InstrumentPSU:
		return c.PSU, true
	case model.InstrumentPump:
		return c.Pump, true
	case model.InstrumentMFC:
		return c.MFC, true
	case model.InstrumentStirrer:
		return c.Stirrer, true
	default:
		return InstrumentConfig{}, false
	}
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from file and environment variables. LAB_RIG_CONFIG may point
// at a specific file.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("LAB_RIG_CONFIG"))
}

// LoadFrom loads configuration from the given file, or searches the default locations
// when path is empty. A missing file in the default locations is not an error.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath("./internal/config")
	}

	// Environment variable support
	v.SetEnvPrefix("LAB_RIG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8086")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.tls.enabled", false)

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "lab_rig")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "./migrations")
	v.SetDefault("database.reading_retention", "720h")

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Experiment defaults
	v.SetDefault("experiment.poll_interval", "10s")
	v.SetDefault("experiment.output_dir", "./data")
	v.SetDefault("experiment.csv_enabled", true)
	v.SetDefault("experiment.intent_queue_size", 8)
	v.SetDefault("experiment.tick_timeout", "30s")

	// Instrument defaults: all 9600 baud, 8-N-1 except the pump at 8-N-2
	for _, kind := range model.InstrumentKinds {
		prefix := "instruments." + kind.ConfigKey()
		v.SetDefault(prefix+".enabled", true)
		v.SetDefault(prefix+".baud_rate", 9600)
		v.SetDefault(prefix+".data_bits", 8)
		v.SetDefault(prefix+".stop_bits", 1)
		v.SetDefault(prefix+".parity", "none")
		v.SetDefault(prefix+".timeout", "1s")
		v.SetDefault(prefix+".settle_delay", "100ms")
	}
	v.SetDefault("instruments.pump.stop_bits", 2)
	v.SetDefault("instruments.psu.channel", 1)
	v.SetDefault("instruments.psu.port", "/dev/ttyUSB0")
	v.SetDefault("instruments.pump.port", "/dev/ttyUSB1")
	v.SetDefault("instruments.mfc.port", "/dev/ttyUSB2")
	v.SetDefault("instruments.stirrer.port", "/dev/ttyUSB3")

	// App defaults
	v.SetDefault("app.name", "lab-rig-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if config.Database.Enabled && config.Database.Host == "" {
		return fmt.Errorf("database.host is required when the database is enabled")
	}
	if config.Experiment.PollInterval <= 0 {
		return fmt.Errorf("experiment.poll_interval must be positive")
	}
	if config.Experiment.IntentQueueSize <= 0 {
		return fmt.Errorf("experiment.intent_queue_size must be positive")
	}

	// Validate environment
	validEnvs := []string{"development", "staging", "production", "test"}
	if !contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	// Validate logging level
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	// Two instruments must never share a serial port
	seen := make(map[string]model.InstrumentKind)
	for _, kind := range model.InstrumentKinds {
		ic, _ := config.Instruments.For(kind)
		if !ic.Enabled {
			continue
		}
		if ic.Port == "" {
			return fmt.Errorf("instruments.%s.port is required", kind.ConfigKey())
		}
		if other, dup := seen[ic.Port]; dup {
			return fmt.Errorf("instruments.%s and instruments.%s share port %s",
				other.ConfigKey(), kind.ConfigKey(), ic.Port)
		}
		seen[ic.Port] = kind
	}

	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// DSN returns the lib/pq connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
