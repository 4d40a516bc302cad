package signal

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/deye-exporter/pkg/logger"
)

// ShutdownTimeout 关闭流程的总超时
const ShutdownTimeout = 10 * time.Second

// WaitForShutdown 阻塞直到收到 SIGINT/SIGTERM 或 ctx 结束，然后在超时内执行 shutdownFunc
func WaitForShutdown(ctx context.Context, shutdownFunc func(ctx context.Context) error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("service is running, waiting for shutdown signal (SIGINT/SIGTERM)...")

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down", zap.Error(ctx.Err()))
	}

	Shutdown(shutdownFunc, ShutdownTimeout)
}

// Shutdown 带超时执行关闭逻辑
func Shutdown(shutdownFunc func(ctx context.Context) error, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- shutdownFunc(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		} else {
			logger.Info("graceful shutdown completed successfully")
		}
	case <-ctx.Done():
		logger.Error("graceful shutdown timed out", zap.Error(ctx.Err()))
	}
}
