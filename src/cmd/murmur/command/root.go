package command

import (
	"fmt"
	"os"

	"github.com/mosaicnetworks/murmur/src/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	conf    *config.Config
	datadir *string
)

func init() {
	conf = config.NewDefaultConfig()

	cobra.OnInitialize(initConfig)

	// Base datadir
	datadir = rootCmd.PersistentFlags().StringP("datadir", "d", conf.DataDir, "Base configuration directory")

	// Logging
	rootCmd.PersistentFlags().String("log", conf.LogLevel, "Log level (debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().String("log-file", conf.LogFile, "Duplicate log output to this file")

	// HTTP service
	rootCmd.PersistentFlags().StringP("service-listen", "s", conf.ServiceAddr, "HTTP service listen IP:Port")
	rootCmd.PersistentFlags().Bool("no-service", conf.NoService, "Disable the HTTP service")

	// Workload configuration
	rootCmd.PersistentFlags().Duration("anti-entropy", conf.AntiEntropyInterval, "Period of the gset full-state replication loop")
	rootCmd.PersistentFlags().Duration("store-timeout", conf.StoreTimeout, "Timeout of a single consistent-store call")
	rootCmd.PersistentFlags().String("store", conf.StoreBackend, "KV store backend (lin-kv, etcd, badger)")
	rootCmd.PersistentFlags().StringSlice("etcd-endpoints", conf.EtcdEndpoints, "Etcd endpoints for the etcd store backend")
	rootCmd.PersistentFlags().String("db", conf.DatabaseDir, "Directory of the badger store backend")
}

func initConfig() {
	viper.AddConfigPath(*datadir)
	viper.SetConfigName("murmur")

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
	Use:   "murmur",
	Short: "Murmur distributed-systems workload node",
	Long: `Murmur runs one workload node for a message-passing test harness:
gossip broadcast, a replicated grow-only set, or a linearizable
key-value proxy. The protocol is JSON envelopes, one per line, on
stdin/stdout.`,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)

		os.Exit(1)
	}
}
