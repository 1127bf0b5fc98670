// Package config defines the global configuration of the coordinator and
// owns the logger factory.
package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/tandemlabs/tandem/src/common"
	"github.com/tandemlabs/tandem/src/engine"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultBadgerFile is the default name of the folder containing the
	// Badger block database
	DefaultBadgerFile = "badger_db"

	// DefaultInfoLog and DefaultDebugLog are the per-level log files used
	// when file logging is enabled.
	DefaultInfoLog  = "tandem_info.log"
	DefaultDebugLog = "tandem_debug.log"
)

// Default configuration values.
const (
	DefaultLogLevel      = "debug"
	DefaultServiceAddr   = "127.0.0.1:8787"
	DefaultBaud          = 115200
	DefaultThreshold     = 0.60
	DefaultRoundDuration = 1200 * time.Millisecond
	DefaultWitnessGrace  = 2000 * time.Millisecond
	DefaultRoundPause    = 3000 * time.Millisecond
	DefaultIdlePause     = 500 * time.Millisecond
	DefaultPollInterval  = 100 * time.Millisecond
	DefaultTxsPerBlock   = 5
	DefaultSkipRollMin   = 1
	DefaultSkipRollMax   = 6
	DefaultStore         = false
	DefaultConsole       = false
	DefaultLogFiles      = false
)

// DefaultPorts returns the default serial port names of the two nodes.
func DefaultPorts() []string {
	return []string{"/dev/ttyACM0", "/dev/ttyACM1"}
}

// Config contains all the configuration properties of a tandem coordinator.
type Config struct {
	// DataDir is the top-level directory containing tandem configuration
	// and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFiles enables per-level log files in the working directory.
	LogFiles bool `mapstructure:"log-files"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// Ports are the serial ports of the two physical nodes, in node-index
	// order.
	Ports []string `mapstructure:"ports"`

	// Baud is the serial line rate.
	Baud int `mapstructure:"baud"`

	// Threshold is the correlation a witness report must clear for a
	// round to commit.
	Threshold float64 `mapstructure:"threshold"`

	// RoundDuration is the challenge duration advertised to the nodes.
	RoundDuration time.Duration `mapstructure:"duration"`

	// WitnessGrace extends the witness window past RoundDuration.
	WitnessGrace time.Duration `mapstructure:"grace"`

	// RoundPause is the pause between rounds.
	RoundPause time.Duration `mapstructure:"pause"`

	// TxsPerBlock is the max number of transactions per committed block.
	TxsPerBlock int `mapstructure:"txs-per-block"`

	// SkipRollMin / SkipRollMax bound the randomized skip threshold.
	SkipRollMin int `mapstructure:"skip-roll-min"`
	SkipRollMax int `mapstructure:"skip-roll-max"`

	// Store activates the persistent block store.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// Console attaches the interactive transaction console to stdin.
	Console bool `mapstructure:"console"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:       DefaultDataDir(),
		LogLevel:      DefaultLogLevel,
		LogFiles:      DefaultLogFiles,
		ServiceAddr:   DefaultServiceAddr,
		Ports:         DefaultPorts(),
		Baud:          DefaultBaud,
		Threshold:     DefaultThreshold,
		RoundDuration: DefaultRoundDuration,
		WitnessGrace:  DefaultWitnessGrace,
		RoundPause:    DefaultRoundPause,
		TxsPerBlock:   DefaultTxsPerBlock,
		SkipRollMin:   DefaultSkipRollMin,
		SkipRollMax:   DefaultSkipRollMax,
		Store:         DefaultStore,
		DatabaseDir:   DefaultDatabaseDir(),
		Console:       DefaultConsole,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// EngineConfig derives the round-loop parameters from the global config.
func (c *Config) EngineConfig() *engine.Config {
	return &engine.Config{
		Threshold:     c.Threshold,
		RoundDuration: c.RoundDuration,
		WitnessGrace:  c.WitnessGrace,
		RoundPause:    c.RoundPause,
		IdlePause:     DefaultIdlePause,
		PollInterval:  DefaultPollInterval,
		TxsPerBlock:   c.TxsPerBlock,
		SkipRollMin:   c.SkipRollMin,
		SkipRollMax:   c.SkipRollMax,
		Ports:         c.Ports,
		Logger:        c.Logger().WithField("prefix", "engine"),
	}
}

// SetDataDir sets the top-level tandem directory, and updates the database
// directory if it is currently set to the default value.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Logger returns a formatted logrus Entry, with prefix set to "tandem".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFiles {
			c.logger.Hooks.Add(fileHook())
		}
	}
	return c.logger.WithField("prefix", "tandem")
}

// fileHook routes info and debug lines to per-level files, when the files
// can be created.
func fileHook() *lfshook.LfsHook {
	pathMap := lfshook.PathMap{}

	if f, err := os.OpenFile(DefaultInfoLog, os.O_CREATE|os.O_WRONLY, 0666); err == nil {
		f.Close()
		pathMap[logrus.InfoLevel] = DefaultInfoLog
	}

	if f, err := os.OpenFile(DefaultDebugLog, os.O_CREATE|os.O_WRONLY, 0666); err == nil {
		f.Close()
		pathMap[logrus.DebugLevel] = DefaultDebugLog
	}

	return lfshook.NewHook(pathMap, &logrus.TextFormatter{})
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level tandem
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Tandem")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Tandem")
		} else {
			return filepath.Join(home, ".tandem")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
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
