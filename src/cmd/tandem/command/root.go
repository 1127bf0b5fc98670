package command

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tandemlabs/tandem/src/config"
	"github.com/tandemlabs/tandem/src/tandem"
	vers "github.com/tandemlabs/tandem/src/version"
)

var (
	conf    *config.Config
	datadir *string
	version *bool
)

func init() {
	conf = config.NewDefaultConfig()

	cobra.OnInitialize(initConfig)

	// Base datadir
	datadir = rootCmd.PersistentFlags().StringP("datadir", "d", conf.DataDir, "Base configuration directory")

	// Serial links
	rootCmd.PersistentFlags().StringSliceP("ports", "p", conf.Ports, "Serial ports of the two nodes, node-index order")
	rootCmd.PersistentFlags().Int("baud", conf.Baud, "Serial line rate")

	// HTTP service
	rootCmd.PersistentFlags().StringP("service-listen", "s", conf.ServiceAddr, "HTTP service listen to IP:Port")
	rootCmd.PersistentFlags().Bool("no-service", conf.NoService, "Disable the HTTP service")

	// Round parameters
	rootCmd.PersistentFlags().Float64("threshold", conf.Threshold, "Witness correlation threshold")
	rootCmd.PersistentFlags().Duration("duration", conf.RoundDuration, "Challenge duration")
	rootCmd.PersistentFlags().Duration("grace", conf.WitnessGrace, "Witness grace after the challenge duration")
	rootCmd.PersistentFlags().Duration("pause", conf.RoundPause, "Pause between rounds")
	rootCmd.PersistentFlags().Int("txs-per-block", conf.TxsPerBlock, "Max transactions per block")
	rootCmd.PersistentFlags().Int("skip-roll-min", conf.SkipRollMin, "Lower bound of the skip threshold roll")
	rootCmd.PersistentFlags().Int("skip-roll-max", conf.SkipRollMax, "Upper bound of the skip threshold roll")

	// Various
	rootCmd.PersistentFlags().Bool("store", conf.Store, "Use badgerDB instead of in-mem block store")
	rootCmd.PersistentFlags().String("db", conf.DatabaseDir, "Database directory")
	rootCmd.PersistentFlags().String("log", conf.LogLevel, "Log level (debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().Bool("log-files", conf.LogFiles, "Also write per-level log files")
	rootCmd.PersistentFlags().Bool("console", conf.Console, "Attach the interactive transaction console")

	// Version
	version = rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version and exit")
}

func initConfig() {
	viper.AddConfigPath(*datadir)
	viper.SetConfigName("tandem")

	viper.BindPFlags(rootCmd.PersistentFlags())

	if err := viper.ReadInConfig(); err != nil {
		conf.Logger().Warn(err, ". Taking cli or default.")
	}

	if err := viper.Unmarshal(conf); err != nil {
		conf.Logger().Warn(err, ". Taking cli or default.")
	}

	conf.SetDataDir(conf.DataDir)
}

var rootCmd = &cobra.Command{
	Use:   "tandem",
	Short: "Tandem physical-witness coordinator",
	Long:  "Tandem physical-witness coordinator",
	Run: func(cmd *cobra.Command, args []string) {
		if *version {
			fmt.Println(vers.Version)

			return
		}

		conf.Logger().WithFields(logrus.Fields{
			"datadir":        conf.DataDir,
			"ports":          conf.Ports,
			"baud":           conf.Baud,
			"service-listen": conf.ServiceAddr,
			"no-service":     conf.NoService,
			"threshold":      conf.Threshold,
			"duration":       conf.RoundDuration,
			"grace":          conf.WitnessGrace,
			"pause":          conf.RoundPause,
			"txs-per-block":  conf.TxsPerBlock,
			"store":          conf.Store,
			"db":             conf.DatabaseDir,
			"log":            conf.LogLevel,
			"console":        conf.Console,
		}).Debug("RUN")

		engine := tandem.NewTandem(conf)

		if err := engine.Init(); err != nil {
			conf.Logger().Error("Cannot initialize coordinator:", err)

			return
		}

		engine.Run()
	},
}

// Execute ...
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)

		os.Exit(1)
	}
}
