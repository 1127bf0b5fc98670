package engine

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tandemlabs/tandem/src/common"
)

// Config holds the round-loop parameters.
type Config struct {
	// Threshold is the correlation a witness report must reach for the
	// round to commit.
	Threshold float64 `mapstructure:"threshold"`

	// RoundDuration is the challenge duration advertised to the nodes. The
	// witness window is RoundDuration + WitnessGrace.
	RoundDuration time.Duration `mapstructure:"duration"`

	// WitnessGrace extends the witness window past the advertised duration
	// to absorb serial latency.
	WitnessGrace time.Duration `mapstructure:"grace"`

	// RoundPause is the pause between rounds.
	RoundPause time.Duration `mapstructure:"pause"`

	// IdlePause is the polling interval of the run loop while the engine
	// is not running rounds.
	IdlePause time.Duration `mapstructure:"idle-pause"`

	// PollInterval is the pause between link polls inside the witness
	// window.
	PollInterval time.Duration `mapstructure:"poll-interval"`

	// TxsPerBlock is the maximum number of mempool transactions consumed
	// by one commit.
	TxsPerBlock int `mapstructure:"txs-per-block"`

	// SkipRollMin and SkipRollMax bound the uniform draw of the skip
	// threshold. The threshold is re-rolled after every use.
	SkipRollMin int `mapstructure:"skip-roll-min"`
	SkipRollMax int `mapstructure:"skip-roll-max"`

	// Ports lists the link port names, for reporting only.
	Ports []string

	Logger *logrus.Entry
}

// DefaultConfig ...
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		Threshold:     0.60,
		RoundDuration: 1200 * time.Millisecond,
		WitnessGrace:  2 * time.Second,
		RoundPause:    3 * time.Second,
		IdlePause:     500 * time.Millisecond,
		PollInterval:  100 * time.Millisecond,
		TxsPerBlock:   5,
		SkipRollMin:   1,
		SkipRollMax:   6,
		Logger:        logger.WithField("prefix", "engine"),
	}
}

// TestConfig returns a config with short windows and a test logger, for
// driving rounds synchronously in tests.
func TestConfig(t testing.TB) *Config {
	config := DefaultConfig()
	config.RoundDuration = 10 * time.Millisecond
	config.WitnessGrace = 20 * time.Millisecond
	config.RoundPause = time.Millisecond
	config.IdlePause = time.Millisecond
	config.PollInterval = time.Millisecond
	config.Logger = common.NewTestEntry(t, common.TestLogLevel)
	return config
}
