package cli

import (
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/poisignal/internal/cacheserver"
)

// serveCacheCmd represents the serve-cache command
var serveCacheCmd = &cobra.Command{
	Use:   "serve-cache",
	Short: "Run the shared remote cache service",
	Long: `serve-cache stores enrichment results in sqlite and serves them to
clients configured with cache.remote_url. Entries expire after 60 days.

Example:
  poisignal serve-cache --addr :8088 --db /var/lib/poisignal/cache.db`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		_ = v.BindPFlag("cache_server.addr", cmd.Flags().Lookup("addr"))
		_ = v.BindPFlag("cache_server.db_path", cmd.Flags().Lookup("db"))
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return eris.Wrap(err, "build logger")
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := cacheserver.OpenStore(ctx, cfg.CacheServer.DBPath, cfg.CacheServer.Expiry)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if !verbose {
			gin.SetMode(gin.ReleaseMode)
		}
		return cacheserver.NewServer(store, logger).Run(ctx, cfg.CacheServer.Addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCacheCmd)
	serveCacheCmd.Flags().String("addr", ":8088", "listen address")
	serveCacheCmd.Flags().String("db", "poicache.db", "sqlite database path")
}
