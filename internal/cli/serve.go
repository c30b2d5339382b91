package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/inventory-sync/internal/adapter/handler"
	"github.com/rl1809/inventory-sync/internal/core/service"
)

const shutdownTimeout = 5 * time.Second

type ServeOptions struct {
	*RootOptions
	NoPoller bool
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC APIs and the change feed poller",
		Long: `Run the inventory service.

Configuration comes from the --config YAML file, a .env file and the
process environment, in that order.

Examples:
  inventory-sync serve
  inventory-sync serve --config ./inventory.yaml
  STORAGE_BACKEND=mysql inventory-sync serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NoPoller, "no-poller", false, "do not start the change feed poller")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	app, err := loadApp(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer app.Close()

	cfg := app.Config
	zl := app.Logger

	var wg sync.WaitGroup
	pollCtx, cancelPoll := context.WithCancel(context.Background())
	defer cancelPoll()

	if !opts.NoPoller {
		publisher := app.Publisher()
		defer publisher.Close()

		poller := service.NewFeedPoller(app.Log, publisher, zl.Named("poller"), cfg.Sync.PollInterval, cfg.Sync.PageSize)
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(pollCtx)
		}()
		zl.Info("started change feed poller", zap.Duration("interval", cfg.Sync.PollInterval))
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		handler.UnaryLogger(zl.Named("grpc")),
		handler.UnaryTimeout(cfg.Server.RequestTimeout),
	))
	handler.RegisterInventoryServer(grpcServer, handler.NewGRPCHandler(app.Inventory, zl.Named("grpc")))

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	go func() {
		zl.Info("gRPC server listening", zap.String("addr", cfg.Server.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			zl.Error("gRPC server error", zap.Error(err))
		}
	}()

	advisor := service.NewAdvisor(cfg.Advisory.Threshold)
	httpHandler := handler.NewHTTPHandler(app.Inventory, advisor, zl.Named("http"), cfg.Server.RequestTimeout)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           httpHandler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	httpErr := make(chan error, 1)
	go func() {
		zl.Info("HTTP server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-httpErr:
		zl.Error("HTTP server error", zap.Error(err))
	}

	zl.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Warn("HTTP shutdown", zap.Error(err))
	}
	zl.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	zl.Info("gRPC server stopped")

	cancelPoll()
	wg.Wait()
	zl.Info("poller stopped")

	if ctx.Err() == nil {
		return WrapExitError(ExitFailure, "server stopped unexpectedly", nil)
	}
	return nil
}
