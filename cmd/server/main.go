package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/gochat-ircd/internal/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("GOCHAT_CONFIG"), "path to a YAML configuration file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	fmt.Println("Starting GoChat IRC server...")

	config, err := server.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	srv := server.New(config, server.WithLogger(logger))
	if err := srv.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if port := srv.Config().WebSocketPort; port != "" {
		httpServer := server.CreateServer(port, server.SetupRoutes(srv))
		g.Go(func() error {
			return server.StartServer(httpServer)
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), srv.Config().ShutdownTimeout)
			defer cancel()
			return server.ShutdownServer(shutdownCtx, httpServer)
		})
	}

	g.Go(func() error {
		return handleReloads(ctx, srv)
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), srv.Config().ShutdownTimeout)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	})

	return g.Wait()
}

// handleReloads restarts the server with an empty registry on SIGHUP and
// closes every connection on SIGUSR1.
func handleReloads(ctx context.Context, srv *server.Server) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(signals)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-signals:
			switch sig {
			case syscall.SIGHUP:
				restartCtx, cancel := context.WithTimeout(ctx, srv.Config().ShutdownTimeout)
				err := srv.Restart(restartCtx)
				cancel()
				if err != nil {
					return fmt.Errorf("restart: %w", err)
				}
			case syscall.SIGUSR1:
				srv.CloseAll()
			}
		}
	}
}
