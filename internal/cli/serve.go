package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lazypower/recall/internal/config"
	"github.com/lazypower/recall/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveBind string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveBind, "bind", "", "Address to bind (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	c, cfg, err := openCorpus(cmd, func(cfg *config.Config) {
		cfg.Merge(&config.Config{Server: config.ServerConfig{Bind: serveBind, Port: servePort}})
	})
	if err != nil {
		return err
	}
	defer c.Close()

	obs := newObserver()
	srv := server.New(c, obs, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errc := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "recall serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  data: %s (%s)\n", cfg.Storage.DataDir, cfg.Storage.Backend)
		if cfg.Retrieval.UseVector {
			fmt.Fprintf(os.Stderr, "  embedder: %s\n", cfg.Embedding.Provider)
		}
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	case <-done:
	}
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
