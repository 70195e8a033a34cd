package command

import (
	"fmt"
	"io"

	"github.com/mosaicnetworks/murmur/src/kvproxy"
	"github.com/mosaicnetworks/murmur/src/murmur"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(kvCmd)
}

var kvCmd = &cobra.Command{
	Use:   "kv",
	Short: "Run the linearizable key-value proxy workload",
	Run: func(cmd *cobra.Command, args []string) {
		logger := conf.Logger()

		store, err := newStore()
		if err != nil {
			logger.WithError(err).Error("Cannot initialize store backend")
			return
		}
		if closer, ok := store.(io.Closer); ok {
			defer closer.Close()
		}

		app := kvproxy.NewProxy(store, conf.StoreTimeout, logger)

		engine := murmur.NewMurmur(conf, app)

		if err := engine.Init(); err != nil {
			logger.WithError(err).Error("Cannot initialize engine")
			return
		}

		engine.Run()
	},
}

func newStore() (kvproxy.Store, error) {
	switch conf.StoreBackend {
	case "lin-kv":
		return kvproxy.NewLinKV(), nil
	case "etcd":
		return kvproxy.NewEtcdStore(conf.EtcdEndpoints)
	case "badger":
		return kvproxy.NewBadgerStore(conf.DatabaseDir)
	default:
		return nil, fmt.Errorf("unknown store backend %q", conf.StoreBackend)
	}
}
