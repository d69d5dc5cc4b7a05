package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrader/metrics"
	"github.com/rustyeddy/papertrader/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the risk coordinator over HTTP",
	Long: `Start the risk API. Prices, portfolio values and holdings are pushed in
by the trading process; summaries, exits and the breaker state are read back.
Prometheus metrics are exposed on /metrics.

Examples:
  trader serve -c trader.yaml
  trader serve --addr :9090 --dev`,
	RunE: runServe,
}

var (
	serveAddr string
	serveDev  bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveDev, "dev", false, "development mode (no response compression)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	coord, err := newCoordinator()
	if err != nil {
		return err
	}

	j, err := cfg.OpenJournal()
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	srv := server.New(server.Config{
		Addr:        addr,
		Log:         log,
		Coordinator: coord,
		Metrics:     metrics.NewRecorder(nil),
		Journal:     j,
		DevMode:     serveDev,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
