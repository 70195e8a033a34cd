package command

import (
	"github.com/mosaicnetworks/murmur/src/gset"
	"github.com/mosaicnetworks/murmur/src/murmur"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(gsetCmd)
}

var gsetCmd = &cobra.Command{
	Use:   "gset",
	Short: "Run the replicated grow-only set workload",
	Run: func(cmd *cobra.Command, args []string) {
		logger := conf.Logger()

		app := gset.NewEngine(conf.AntiEntropyInterval, logger)

		engine := murmur.NewMurmur(conf, app)

		if err := engine.Init(); err != nil {
			logger.WithError(err).Error("Cannot initialize engine")
			return
		}

		engine.Run()
	},
}
