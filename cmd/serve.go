package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/KaramelBytes/tardis-cli/internal/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analytics and prediction JSON API",
	Long: `Serve the JSON API with /health and /metrics. SIGHUP reloads the dataset and model;
a source that fails to reload keeps serving its previous version.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine(cmd, true)
		if err != nil {
			return err
		}
		st := eng.Status()
		if st.DatasetError != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: dataset not loaded: %s\n", st.DatasetError)
		}
		if st.ModelError != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: model not loaded, predictions disabled: %s\n", st.ModelError)
		}
		addr := cfg.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
		srv := server.New(eng, server.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			TopK:           cfg.TopK,
			CompareMax:     cfg.CompareMaxRoutes,
			Logger:         logger,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go reloadOnSignal(ctx, hup, func() {
			st := eng.Reload()
			switch {
			case st.DatasetError != "" || st.ModelError != "":
				logger.Printf("reload: dataset=%q model=%q", st.DatasetError, st.ModelError)
			default:
				logger.Printf("reload: %d trips, model %s", st.Dataset.Loaded, st.Model)
			}
		})

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Serving on http://%s\n", addr)
		return srv.ListenAndServe(ctx, addr)
	},
}

func reloadOnSignal(ctx context.Context, sig <-chan os.Signal, reload func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			reload()
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config listen_addr)")
}
