package command

import (
	"github.com/mosaicnetworks/murmur/src/broadcast"
	"github.com/mosaicnetworks/murmur/src/murmur"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(broadcastCmd)
}

var broadcastCmd = &cobra.Command{
	Use:   "broadcast",
	Short: "Run the gossip broadcast workload",
	Run: func(cmd *cobra.Command, args []string) {
		logger := conf.Logger()

		app := broadcast.NewDisseminator(logger)

		engine := murmur.NewMurmur(conf, app)

		if err := engine.Init(); err != nil {
			logger.WithError(err).Error("Cannot initialize engine")
			return
		}

		engine.Run()
	},
}
