package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"meetwork/internal/auth"
	"meetwork/internal/config"
	httpx "meetwork/internal/http"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:   "meetwork",
	Short: "Meeting AI job scheduler and API",
	Long: `meetwork runs the background scheduler that transcribes meeting
recordings, summarizes transcripts and extracts cards onto workspace boards.

Commands:
  serve   - HTTP API plus the scheduler
  worker  - scheduler only
  reap    - fail stale running jobs once and exit`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the job scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.ValidateAPI(); err != nil {
			return err
		}
		a, err := buildApp(ctx, cfg, debug)
		if err != nil {
			return err
		}
		defer a.close()

		r := httpx.NewRouter(httpx.Deps{
			Config:   a.cfg,
			DB:       a.db,
			JWT:      auth.NewJWT(a.cfg.JWTSecret),
			Gatherer: a.registry,
			Log:      a.log.Named("http"),
		})
		srv := &http.Server{
			Addr:              a.cfg.HTTPAddr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		}

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.worker.Run(ctx)
		}()

		errCh := make(chan error, 1)
		go func() {
			a.log.Infow("listening", "addr", a.cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		select {
		case <-ctx.Done():
		case err = <-errCh:
			a.log.Errorw("http server failed", "error", err)
		}

		a.worker.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		wg.Wait()
		return err
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the job scheduler without the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		a, err := buildApp(ctx, cfg, debug)
		if err != nil {
			return err
		}
		defer a.close()

		a.worker.Run(ctx)
		return nil
	},
}

var reapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Fail running jobs that exceeded the stale threshold, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		a, err := buildApp(cmd.Context(), cfg, debug)
		if err != nil {
			return err
		}
		defer a.close()

		n, err := a.reaper.Reap(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reaped %d job(s)\n", n)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd, workerCmd, reapCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
