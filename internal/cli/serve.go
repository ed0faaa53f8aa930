package cli

import (
	"github.com/spf13/cobra"

	"github.com/selimozt/fabpack/pkg/api"
	"github.com/selimozt/fabpack/pkg/cache"
	"github.com/selimozt/fabpack/pkg/pipeline"
	"github.com/selimozt/fabpack/pkg/store"
)

// serveCommand creates the serve command, which runs the HTTP
// legalization service.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr      string
		redisAddr string
		mongoURI  string
		noCache   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP legalization service",
		Long: `Serve exposes legalization over HTTP: POST documents to /v1/legalize,
list and fetch recorded runs under /v1/runs, and render artifacts on
demand. Runs are stored on disk unless a MongoDB URI is given, and
results are cached locally unless a Redis address is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var resultCache cache.Cache
			var err error
			switch {
			case noCache:
				resultCache = cache.NewNullCache()
			case redisAddr != "":
				resultCache, err = cache.NewRedisCache(redisAddr, "", 0)
			default:
				resultCache, err = newCache(false)
			}
			if err != nil {
				return err
			}
			defer resultCache.Close()

			var st store.Store
			if mongoURI != "" {
				st, err = store.NewMongoStore(ctx, mongoURI, "fabpack")
			} else {
				st, err = runStore()
			}
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			srv, err := api.NewServer(api.Config{
				Runner: pipeline.NewRunner(resultCache, nil, c.Logger),
				Store:  st,
				Logger: c.Logger,
			})
			if err != nil {
				return err
			}

			c.Logger.Info("starting server", "addr", addr)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address for the result cache (host:port)")
	cmd.Flags().StringVar(&mongoURI, "mongo", "", "MongoDB URI for the run store")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the result cache")

	return cmd
}
