package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/deye-exporter/pkg/logger"
	"github.com/deye-exporter/pkg/metrics"
	"github.com/deye-exporter/pkg/registers"
)

// ReadFailure 单个寄存器本轮失败的原因
type ReadFailure struct {
	RegisterID string
	Err        error
}

// CycleResult 一轮采集的结果
type CycleResult struct {
	Succeeded int
	Failed    []ReadFailure
	Skipped   int // ctx 取消后未读取的寄存器
}

// CycleError 一轮采集中有寄存器失败（其余寄存器已正常更新）
type CycleError struct {
	Total  int
	Failed []ReadFailure
}

func (e *CycleError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		parts = append(parts, fmt.Sprintf("%s: %v", f.RegisterID, f.Err))
	}
	return fmt.Sprintf("%d of %d registers failed: %s", len(e.Failed), e.Total, strings.Join(parts, "; "))
}

func (e *CycleError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}

// InverterCollector 按顺序读取选中的寄存器，单个寄存器失败不影响其余寄存器
type InverterCollector struct {
	name      string
	registers []registers.Register
	reader    Reader
	samples   Recorder
	clock     clockwork.Clock

	readErrors  *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

// NewInverterCollector 创建逆变器采集器
func NewInverterCollector(regs []registers.Register, reader Reader, samples Recorder, factory *metrics.MetricFactory, clock clockwork.Clock) *InverterCollector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &InverterCollector{
		name:        "inverter",
		registers:   append([]registers.Register(nil), regs...),
		reader:      reader,
		samples:     samples,
		clock:       clock,
		readErrors:  factory.NewReadErrorsTotal(),
		lastSuccess: factory.NewLastReadTimestamp(),
	}
}

func (c *InverterCollector) Name() string { return c.name }

func (c *InverterCollector) Init() error {
	if c.reader == nil || c.samples == nil {
		return errors.New("inverter collector: reader and sample registry are required")
	}
	if len(c.registers) == 0 {
		return errors.New("inverter collector: no registers selected")
	}
	logger.Debug("inverter collector initialized", logger.Component(c.name), zap.Int("registers", len(c.registers)))
	return nil
}

// RunCycle 按选择顺序读取每个寄存器：成功写入采样，失败记录原因后继续
func (c *InverterCollector) RunCycle(ctx context.Context) CycleResult {
	var res CycleResult
	for i, reg := range c.registers {
		if ctx.Err() != nil {
			res.Skipped = len(c.registers) - i
			logger.Debug("cycle interrupted", logger.Component(c.name), zap.Int("skipped", res.Skipped))
			break
		}

		raw, err := c.reader.ReadRegister(ctx, reg)
		if err != nil {
			c.readErrors.WithLabelValues(reg.ID).Inc()
			res.Failed = append(res.Failed, ReadFailure{RegisterID: reg.ID, Err: err})
			logger.Warn("register read failed", logger.Component(c.name),
				zap.String("register", reg.ID), zap.Uint16("address", reg.Address), zap.Error(err))
			continue
		}

		if err := c.samples.RecordSample(reg.ID, raw); err != nil {
			res.Failed = append(res.Failed, ReadFailure{RegisterID: reg.ID, Err: err})
			logger.Warn("register sample rejected", logger.Component(c.name),
				zap.String("register", reg.ID), zap.Any("value", raw), zap.Error(err))
			continue
		}

		res.Succeeded++
		c.lastSuccess.WithLabelValues(reg.ID).Set(float64(c.clock.Now().UnixNano()) / 1e9)
		logger.Debug("register read", logger.Component(c.name), zap.String("register", reg.ID), zap.Any("value", raw))
	}
	return res
}

// Collect 适配 Collector 接口：有寄存器失败时返回 *CycleError
func (c *InverterCollector) Collect(ctx context.Context) error {
	res := c.RunCycle(ctx)
	if len(res.Failed) > 0 {
		return &CycleError{Total: len(c.registers), Failed: res.Failed}
	}
	return ctx.Err()
}

// Close 关闭设备连接
func (c *InverterCollector) Close() error {
	if c.reader == nil {
		return nil
	}
	return c.reader.Close()
}
