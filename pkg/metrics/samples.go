package metrics

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/deye-exporter/pkg/registers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cast"
)

// Kind 指标值类型，在条目首次创建时确定，之后不再改变
type Kind int

const (
	Numeric Kind = iota // gauge
	Textual             // info（gauge=1 + value 标签）
)

func (k Kind) String() string {
	if k == Textual {
		return "textual"
	}
	return "numeric"
}

var (
	ErrUnknownRegister = errors.New("metrics: unknown register")
	ErrKindMismatch    = errors.New("metrics: value kind differs from the kind fixed at creation")
	ErrNameConflict    = errors.New("metrics: metric name already used by another register")
)

// Entry 某个寄存器条目在某一时刻的只读视图
type Entry struct {
	RegisterID string
	Name       string
	Help       string
	Kind       Kind
	Number     float64 // Kind == Numeric
	Text       string  // Kind == Textual
}

// Value 返回当前值（float64 或 string）
func (e Entry) Value() any {
	if e.Kind == Textual {
		return e.Text
	}
	return e.Number
}

type sample struct {
	number float64
	text   string
}

type entry struct {
	registerID string
	name       string
	help       string
	kind       Kind
	desc       *prometheus.Desc
	current    atomic.Pointer[sample]
}

func (e *entry) view() Entry {
	s := e.current.Load()
	return Entry{
		RegisterID: e.registerID,
		Name:       e.name,
		Help:       e.help,
		Kind:       e.kind,
		Number:     s.number,
		Text:       s.text,
	}
}

// LookupFunc 按 ID 查找寄存器描述
type LookupFunc func(id string) (registers.Register, bool)

// Registry 寄存器采样注册表：每个寄存器一个条目，首次读取成功时创建，之后原地更新，不会删除。
// 只由采集循环写入，由 /metrics 并发读取。
type Registry struct {
	mu      sync.RWMutex // 仅在创建条目时写锁
	entries map[string]*entry
	names   map[string]string // 指标名 → 寄存器 ID
	order   []*entry
	lookup  LookupFunc
}

// NewRegistry 创建采样注册表，lookup 为 nil 时使用内置寄存器目录
func NewRegistry(lookup LookupFunc) *Registry {
	if lookup == nil {
		lookup = registers.Lookup
	}
	return &Registry{
		entries: make(map[string]*entry),
		names:   make(map[string]string),
		lookup:  lookup,
	}
}

// Classify 判断原始值类型：可表示为有限实数的为 Numeric，其余（含空值、无法解析）为 Textual
func Classify(raw any) (Kind, float64, string) {
	if raw == nil {
		return Textual, 0, ""
	}
	if s, ok := raw.(string); ok {
		// cast 把空串当作 0
		if s = strings.TrimSpace(s); s == "" {
			return Textual, 0, ""
		}
		raw = s
	}
	if f, err := cast.ToFloat64E(raw); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return Numeric, f, ""
	}
	return Textual, 0, textOf(raw)
}

func textOf(raw any) string {
	if raw == nil {
		return ""
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		s = fmt.Sprint(raw)
	}
	return strings.ToValidUTF8(s, "")
}

// RecordSample 记录一次成功读取：首次创建条目（类型由本次值确定），之后原地更新。
// 数值条目收到非数值时保留旧值并返回 ErrKindMismatch；文本条目收到数值时保存其文本形式。
func (r *Registry) RecordSample(registerID string, raw any) error {
	kind, number, text := Classify(raw)

	r.mu.RLock()
	e, ok := r.entries[registerID]
	r.mu.RUnlock()

	if !ok {
		var err error
		if e, err = r.create(registerID, kind); err != nil {
			return err
		}
	}

	switch {
	case e.kind == kind:
		e.current.Store(&sample{number: number, text: text})
	case e.kind == Textual:
		e.current.Store(&sample{text: textOf(raw)})
	default:
		return fmt.Errorf("%w: %s is %s, got %q", ErrKindMismatch, registerID, e.kind, text)
	}
	return nil
}

func (r *Registry) create(registerID string, kind Kind) (*entry, error) {
	reg, ok := r.lookup(registerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRegister, registerID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// 读锁释放后可能已被创建
	if e, ok := r.entries[registerID]; ok {
		return e, nil
	}

	name := MetricName(reg.Description, kind)
	if owner, taken := r.names[name]; taken {
		return nil, fmt.Errorf("%w: %s (owned by %s, wanted by %s)", ErrNameConflict, name, owner, registerID)
	}

	var labels []string
	if kind == Textual {
		labels = []string{"value"}
	}
	e := &entry{
		registerID: registerID,
		name:       name,
		help:       reg.Help(),
		kind:       kind,
		desc:       prometheus.NewDesc(name, reg.Help(), labels, nil),
	}
	e.current.Store(&sample{})

	r.entries[registerID] = e
	r.names[name] = registerID
	r.order = append(r.order, e)
	return e, nil
}

// Snapshot 返回所有条目的时间点副本，按创建顺序
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.order))
	for _, e := range r.order {
		out = append(out, e.view())
	}
	return out
}

// Len 已创建的条目数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Describe 不预先声明描述符（条目延迟创建），作为 unchecked collector 注册
func (r *Registry) Describe(chan<- *prometheus.Desc) {}

// Collect 实现 prometheus.Collector
func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.order {
		s := e.current.Load()
		if e.kind == Textual {
			ch <- prometheus.MustNewConstMetric(e.desc, prometheus.GaugeValue, 1, s.text)
			continue
		}
		ch <- prometheus.MustNewConstMetric(e.desc, prometheus.GaugeValue, s.number)
	}
}
