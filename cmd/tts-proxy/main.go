// main package for the tts-proxy
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-proxy/internal/config"
	"github.com/book-expert/tts-proxy/internal/server"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "tts-proxy.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	defer func() { _ = bootstrapLog.Close() }()

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	// 4. Wire the components
	application, err := newApp(cfg, finalLog)
	if err != nil {
		finalLog.Error("Failed to initialize: %v", err)

		return err
	}
	defer application.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, application, finalLog)
}

// serve runs the front door, the metrics listener and the worker until ctx is
// cancelled or one of them fails.
func serve(ctx context.Context, cfg *config.Config, application *app, log *logger.Logger) error {
	group, groupCtx := errgroup.WithContext(ctx)

	servers := []*http.Server{server.New(cfg, application.handler)}

	metricsServer := server.NewMetricsServer(cfg, application.metrics.Handler())
	if metricsServer != nil {
		servers = append(servers, metricsServer)
	}

	for _, srv := range servers {
		group.Go(func() error {
			log.System("Listening on %s", srv.Addr)

			err := srv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server on %s failed: %w", srv.Addr, err)
			}

			return nil
		})
	}

	if application.worker != nil {
		group.Go(func() error {
			return application.worker.Run(groupCtx)
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()

		log.System("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(groupCtx), shutdownTimeout)
		defer cancel()

		var errs []error

		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}

		return errors.Join(errs...)
	})

	return group.Wait()
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
