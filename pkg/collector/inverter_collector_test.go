package collector_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deye-exporter/pkg/collector"
	"github.com/deye-exporter/pkg/metrics"
	"github.com/deye-exporter/pkg/registers"
)

var errTimeout = errors.New("i/o timeout")

// fakeReader 按寄存器 ID 返回固定值或错误
type fakeReader struct {
	mu     sync.Mutex
	values map[string]any
	errs   map[string]error
	reads  []string
	closed bool
}

func (r *fakeReader) ReadRegister(_ context.Context, reg registers.Register) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads = append(r.reads, reg.ID)
	if err, ok := r.errs[reg.ID]; ok {
		return nil, err
	}
	return r.values[reg.ID], nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func mustResolve(t *testing.T, ids ...string) []registers.Register {
	t.Helper()
	regs, err := registers.Resolve(ids)
	require.NoError(t, err)
	return regs
}

func newFactory() *metrics.MetricFactory {
	return metrics.NewMetricFactory(metrics.NewPromRegistry(prometheus.NewRegistry()))
}

func TestRunCycleIsolatesFailures(t *testing.T) {
	reader := &fakeReader{
		values: map[string]any{"BatteryChargeToday": 12.4, "BatteryStatus": "Charging"},
		errs:   map[string]error{"BMSBatteryVoltage": errTimeout},
	}
	samples := metrics.NewRegistry(nil)
	clock := clockwork.NewFakeClockAt(time.Unix(1700000000, 0))
	c := collector.NewInverterCollector(
		mustResolve(t, "BatteryChargeToday", "BMSBatteryVoltage", "BatteryStatus"),
		reader, samples, newFactory(), clock)
	require.NoError(t, c.Init())

	res := c.RunCycle(context.Background())
	assert.Equal(t, 2, res.Succeeded)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "BMSBatteryVoltage", res.Failed[0].RegisterID)
	assert.ErrorIs(t, res.Failed[0].Err, errTimeout)
	assert.Equal(t, []string{"BatteryChargeToday", "BMSBatteryVoltage", "BatteryStatus"}, reader.reads)

	snap := samples.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "deye_battery_charge_today", snap[0].Name)
	assert.Equal(t, 12.4, snap[0].Value())
	assert.Equal(t, "deye_battery_status_info", snap[1].Name)
	assert.Equal(t, "Charging", snap[1].Value())
}

func TestRunCycleKeepsPreviousValueOnFailure(t *testing.T) {
	reader := &fakeReader{values: map[string]any{"BatterySOC": 80}}
	samples := metrics.NewRegistry(nil)
	c := collector.NewInverterCollector(mustResolve(t, "BatterySOC"), reader, samples, newFactory(), nil)

	assert.Equal(t, 1, c.RunCycle(context.Background()).Succeeded)

	reader.errs = map[string]error{"BatterySOC": errTimeout}
	res := c.RunCycle(context.Background())
	assert.Zero(t, res.Succeeded)
	require.Len(t, samples.Snapshot(), 1)
	assert.Equal(t, 80.0, samples.Snapshot()[0].Value())
}

func TestRunCycleReportsKindMismatch(t *testing.T) {
	reader := &fakeReader{values: map[string]any{"BatteryVoltage": 52.1}}
	samples := metrics.NewRegistry(nil)
	c := collector.NewInverterCollector(mustResolve(t, "BatteryVoltage"), reader, samples, newFactory(), nil)
	c.RunCycle(context.Background())

	reader.values["BatteryVoltage"] = "Error"
	res := c.RunCycle(context.Background())
	require.Len(t, res.Failed, 1)
	assert.ErrorIs(t, res.Failed[0].Err, metrics.ErrKindMismatch)
	assert.Equal(t, 52.1, samples.Snapshot()[0].Value())
}

func TestCollectReturnsCycleError(t *testing.T) {
	reader := &fakeReader{
		values: map[string]any{"BatterySOC": 90},
		errs:   map[string]error{"BatteryPower": errTimeout},
	}
	promReg := prometheus.NewRegistry()
	factory := metrics.NewMetricFactory(metrics.NewPromRegistry(promReg))
	clock := clockwork.NewFakeClockAt(time.Unix(1700000000, 0))
	c := collector.NewInverterCollector(mustResolve(t, "BatterySOC", "BatteryPower"), reader, metrics.NewRegistry(nil), factory, clock)

	err := c.Collect(context.Background())
	require.Error(t, err)
	var cycleErr *collector.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, 2, cycleErr.Total)
	assert.ErrorIs(t, err, errTimeout)
	assert.Contains(t, err.Error(), "BatteryPower")

	n, err := testutil.GatherAndCount(promReg, "deye_exporter_register_read_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = testutil.GatherAndCount(promReg, "deye_exporter_register_last_success_timestamp_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reader.errs = nil
	reader.values["BatteryPower"] = -250
	assert.NoError(t, c.Collect(context.Background()))
}

func TestRunCycleStopsOnCancel(t *testing.T) {
	reader := &fakeReader{values: map[string]any{"BatterySOC": 1, "BatteryPower": 2}}
	c := collector.NewInverterCollector(mustResolve(t, "BatterySOC", "BatteryPower"), reader, metrics.NewRegistry(nil), newFactory(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := c.RunCycle(ctx)
	assert.Equal(t, 2, res.Skipped)
	assert.Empty(t, reader.reads)
	assert.ErrorIs(t, c.Collect(ctx), context.Canceled)
}

func TestInitAndClose(t *testing.T) {
	c := collector.NewInverterCollector(nil, &fakeReader{}, metrics.NewRegistry(nil), newFactory(), nil)
	assert.Error(t, c.Init())

	reader := &fakeReader{}
	c = collector.NewInverterCollector(mustResolve(t, "BatterySOC"), reader, metrics.NewRegistry(nil), newFactory(), nil)
	assert.Equal(t, "inverter", c.Name())
	require.NoError(t, c.Init())
	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
}
