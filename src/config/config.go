package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultBadgerFile is the default name of the folder containing the
	// Badger database used by the badger store backend.
	DefaultBadgerFile = "badger_db"
)

// Default configuration values.
const (
	DefaultLogLevel            = "debug"
	DefaultServiceAddr         = "127.0.0.1:8000"
	DefaultAntiEntropyInterval = 5 * time.Second
	DefaultStoreTimeout        = 1 * time.Second
	DefaultStoreBackend        = "lin-kv"
)

// Config contains all the configuration properties of a murmur node.
type Config struct {
	// DataDir is the top-level directory containing murmur configuration
	// and data.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, duplicates log output to a file. Logs always go to
	// stderr, never stdout, which carries the protocol.
	LogFile string `mapstructure:"log-file"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service serving
	// stats and metrics.
	ServiceAddr string `mapstructure:"service-listen"`

	// AntiEntropyInterval is the period of the gset workload's full-state
	// replication loop.
	AntiEntropyInterval time.Duration `mapstructure:"anti-entropy"`

	// StoreTimeout bounds a single call against the external consistent
	// store in the kv workload.
	StoreTimeout time.Duration `mapstructure:"store-timeout"`

	// StoreBackend selects the kv workload's consistent store: "lin-kv"
	// (the harness service), "etcd", or "badger".
	StoreBackend string `mapstructure:"store"`

	// EtcdEndpoints lists the etcd cluster endpoints for the etcd backend.
	EtcdEndpoints []string `mapstructure:"etcd-endpoints"`

	// DatabaseDir is the directory containing the badger backend's files.
	DatabaseDir string `mapstructure:"db"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:             DefaultDataDir(),
		LogLevel:            DefaultLogLevel,
		ServiceAddr:         DefaultServiceAddr,
		AntiEntropyInterval: DefaultAntiEntropyInterval,
		StoreTimeout:        DefaultStoreTimeout,
		StoreBackend:        DefaultStoreBackend,
		DatabaseDir:         DefaultDatabaseDir(),
	}

	return config
}

// SetDataDir sets the top-level murmur directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, the user has explicitly set it to
// something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Logger returns a formatted logrus Entry, with prefix set to "murmur".
// Output goes to stderr; when LogFile is set, a file hook duplicates every
// entry there.
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Out = os.Stderr
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			pathMap := lfshook.PathMap{}
			for _, level := range logrus.AllLevels {
				if level <= c.logger.Level {
					pathMap[level] = c.LogFile
				}
			}
			c.logger.Hooks.Add(lfshook.NewHook(pathMap, new(prefixed.TextFormatter)))
		}
	}
	return c.logger.WithField("prefix", "murmur")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir returns the default directory for top-level murmur config.
func DefaultDataDir() string {
	home := HomeDir()
	if home != "" {
		return filepath.Join(home, ".murmur")
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
