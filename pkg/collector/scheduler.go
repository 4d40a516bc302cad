package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/deye-exporter/pkg/logger"
	"github.com/deye-exporter/pkg/metrics"
)

var (
	// ErrCyclePanic 采集过程中发生 panic（已恢复）
	ErrCyclePanic     = errors.New("collector panicked")
	ErrAlreadyStarted = errors.New("scheduler already started")
)

const schedulerComponent = "scheduler"

// Scheduler 实现 Agent 接口：固定周期驱动所有采集器。
// 每轮结束后休眠 max(0, interval-本轮耗时)，采集超时不会累积成突发。
type Scheduler struct {
	collectors []Collector
	interval   time.Duration
	clock      clockwork.Clock

	cycleDuration *prometheus.HistogramVec
	cycleFailures *prometheus.CounterVec

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// SchedulerOption 调度器可选项
type SchedulerOption func(*Scheduler)

// WithClock 注入时钟（测试用 clockwork.FakeClock）
func WithClock(clock clockwork.Clock) SchedulerOption {
	return func(s *Scheduler) { s.clock = clock }
}

// NewScheduler 创建调度器，factory 为 nil 时不导出调度器自身指标
func NewScheduler(interval time.Duration, factory *metrics.MetricFactory, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		collectors: make([]Collector, 0),
		interval:   interval,
		clock:      clockwork.NewRealClock(),
	}
	if factory != nil {
		s.cycleDuration = factory.NewCycleDurationSeconds()
		s.cycleFailures = factory.NewCycleFailuresTotal()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register 注册采集器
func (s *Scheduler) Register(c Collector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.collectors {
		if existing.Name() == c.Name() {
			logger.Warn("collector already registered, skip", logger.Component(schedulerComponent), zap.String("collector", c.Name()))
			return
		}
	}
	s.collectors = append(s.collectors, c)
}

// InitAll 批量初始化所有采集器
func (s *Scheduler) InitAll() error {
	for _, coll := range s.snapshot() {
		if err := coll.Init(); err != nil {
			return fmt.Errorf("collector %s init failed: %w", coll.Name(), err)
		}
		logger.Debug("collector initialized successfully", logger.Component(schedulerComponent), zap.String("collector", coll.Name()))
	}
	return nil
}

func (s *Scheduler) snapshot() []Collector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Collector(nil), s.collectors...)
}

// Start 初始化采集器并在后台 goroutine 中运行采集循环
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	if err := s.InitAll(); err != nil {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	logger.Info("collector scheduler started", logger.Component(schedulerComponent),
		zap.Duration("interval", s.interval),
		zap.Int("registered-collectors-count", len(s.collectors)))

	go func() {
		defer close(s.done)
		s.Run(loopCtx)
	}()
	return nil
}

// Run 阻塞运行采集循环直到 ctx 取消
func (s *Scheduler) Run(ctx context.Context) {
	for {
		start := s.clock.Now()
		s.CollectAll(ctx)

		if ctx.Err() != nil {
			logger.Info("collector scheduler stopped", logger.Component(schedulerComponent), zap.Error(ctx.Err()))
			return
		}

		wait := s.interval - s.clock.Since(start)
		if wait <= 0 {
			logger.Warn("collection cycle exceeded interval", logger.Component(schedulerComponent),
				zap.Duration("interval", s.interval), zap.Duration("elapsed", s.clock.Since(start)))
			continue
		}

		timer := s.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("collector scheduler stopped", logger.Component(schedulerComponent), zap.Error(ctx.Err()))
			return
		case <-timer.Chan():
		}
	}
}

// CollectAll 执行一轮采集，单个采集器的错误或 panic 不影响其他采集器和下一轮
func (s *Scheduler) CollectAll(ctx context.Context) {
	for _, coll := range s.snapshot() {
		s.collectOne(ctx, coll)
	}
}

func (s *Scheduler) collectOne(ctx context.Context, coll Collector) {
	start := s.clock.Now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrCyclePanic, coll.Name(), r)
		}
		if s.cycleDuration != nil {
			s.cycleDuration.WithLabelValues(coll.Name()).Observe(s.clock.Since(start).Seconds())
		}

		var partial *CycleError
		switch {
		case err == nil, errors.Is(err, context.Canceled) && ctx.Err() != nil:
			logger.Debug("collection cycle finished", logger.Component(schedulerComponent),
				zap.String("collector", coll.Name()), zap.Duration("elapsed", s.clock.Since(start)))
		case errors.As(err, &partial):
			// 单个寄存器的失败已逐个记录
			logger.Warn("collection cycle partially failed", logger.Component(schedulerComponent),
				zap.String("collector", coll.Name()), zap.Int("failed", len(partial.Failed)), zap.Int("total", partial.Total))
		default:
			if s.cycleFailures != nil {
				s.cycleFailures.WithLabelValues(coll.Name()).Inc()
			}
			logger.Error("collection cycle failed", logger.Component(schedulerComponent),
				zap.String("collector", coll.Name()), zap.Error(err))
		}
	}()
	err = coll.Collect(ctx)
}

// Shutdown 停止采集循环、等待当前一轮结束并关闭所有采集器
func (s *Scheduler) Shutdown(ctx context.Context) error {
	logger.Info("starting to shutdown collector scheduler", logger.Component(schedulerComponent))

	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("wait for collection loop: %w", ctx.Err())
		}
	}
	return s.CloseAll()
}

// CloseAll 批量关闭采集器，返回所有关闭错误
func (s *Scheduler) CloseAll() error {
	var errs []error
	for _, coll := range s.snapshot() {
		if err := coll.Close(); err != nil {
			logger.Error("failed to close collector", logger.Component(schedulerComponent), zap.String("collector", coll.Name()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		logger.Debug("collector closed successfully", logger.Component(schedulerComponent), zap.String("collector", coll.Name()))
	}
	return errors.Join(errs...)
}
