package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/bookseek/internal/http"
)

var (
	serveHost  string
	servePort  int
	serveWatch string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API on server.http_host:server.http_port (default 127.0.0.1:8501).

Examples:
  # Serve with defaults
  bookseek serve

  # Also ingest PDFs dropped into a directory
  bookseek serve --watch ~/papers`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "override server.http_host")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "override server.http_port")
	serveCmd.Flags().StringVar(&serveWatch, "watch", "", "directory to watch for new PDF files")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{requireGenerator: true})
	if err != nil {
		return err
	}
	defer a.Close()

	sc := a.cfg.Server
	if serveHost != "" {
		sc.Host = serveHost
	}
	if servePort != 0 {
		sc.Port = servePort
	}

	zl := a.logger.Underlying()
	srv, err := httpserver.NewServer(a.svc, zl, &httpserver.Config{
		Host: sc.Host,
		Port: sc.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- srv.Start()
	}()
	if serveWatch != "" {
		go func() {
			errCh <- watchDir(ctx, a, srv.Session(), serveWatch)
		}()
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "bookseek listening on http://%s:%d\n", sc.Host, sc.Port)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("http shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
