package exporter

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/deye-exporter/internal/server"
	"github.com/deye-exporter/pkg/collector"
	"github.com/deye-exporter/pkg/config"
	"github.com/deye-exporter/pkg/inverter"
	"github.com/deye-exporter/pkg/logger"
	"github.com/deye-exporter/pkg/metrics"
	"github.com/deye-exporter/pkg/signal"
	"github.com/deye-exporter/pkg/util"
)

const enableProcess = true

func runServer(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	//初始化日志
	if _, err := logger.InitLogger(&cfg.Log); err != nil {
		return fmt.Errorf("日志初始化失败: %w", err)
	}
	defer logger.Sync()

	util.PrintBanner(os.Stdout, "deye-exporter", "ColorBlue")
	logger.SetDefaultComponent("main")
	logger.Info("configuration loaded",
		zap.String("inverter", cfg.Inverter.Addr()),
		zap.String("protocol", cfg.Inverter.Protocol),
		zap.Uint32("serial", cfg.Inverter.SerialNumber),
		zap.Duration("interval", cfg.Exporter.Interval()),
		zap.Int("registers", len(cfg.Registers)),
		zap.String("log_level", cfg.Log.Level))

	// 采样注册表 + 独立 Prometheus 注册器（不含 Go 运行时指标）
	samples := metrics.NewRegistry(nil)
	promReg := metrics.NewExporterRegistry(enableProcess, samples)
	factory := metrics.NewMetricFactory(metrics.NewPromRegistry(promReg))

	reader, err := inverter.New(cfg.Inverter)
	if err != nil {
		return fmt.Errorf("create inverter reader: %w", err)
	}

	scheduler := collector.NewScheduler(cfg.Exporter.Interval(), factory)
	scheduler.Register(collector.NewInverterCollector(cfg.Registers, reader, samples, factory, nil))

	// 先启动 HTTP：首轮采集完成前 /metrics 返回空集合
	httpServer := server.NewHTTPServer(cfg.Exporter.Addr(), promReg)
	if err := httpServer.Start(); err != nil {
		_ = reader.Close()
		return fmt.Errorf("start HTTP server failed: %w", err)
	}

	if err := scheduler.Start(ctx); err != nil {
		_ = httpServer.Shutdown(context.Background())
		_ = reader.Close()
		return fmt.Errorf("start collector scheduler failed: %w", err)
	}

	signal.WaitForShutdown(ctx, func(ctx context.Context) error {
		// 关闭顺序：HTTP服务 → 采集器（关闭设备连接）
		return errors.Join(httpServer.Shutdown(ctx), scheduler.Shutdown(ctx))
	})
	logger.Info("all services shutdown successfully")
	return nil
}
