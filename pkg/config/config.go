package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/deye-exporter/pkg/registers"
)

var valid = newValidator()

// ErrInvalidConfig 所有配置错误都包装该错误，启动阶段据此退出
var ErrInvalidConfig = errors.New("invalid configuration")

func newValidator() *validator.Validate {
	v := validator.New()
	// 错误信息里使用 section.key 形式的字段名
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
	})
	return v
}

// Config 导出器有效配置（默认值 < INI 文件 < 环境变量 < 命令行），构建后只读
type Config struct {
	Exporter ExporterConfig `mapstructure:"exporter"`
	Inverter InverterConfig `mapstructure:"inverter"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      ZapLogConfig   `mapstructure:"log"`

	// Registers 解析后的采集寄存器，按选择顺序；选择为空时为整个目录
	Registers []registers.Register `mapstructure:"-"`
}

// ExporterConfig HTTP 暴露端口与采集周期
type ExporterConfig struct {
	Port               int `mapstructure:"port" env:"EXPORTER_PORT" validate:"gte=1,lte=65535" comment:"HTTP监听端口"`
	CollectionInterval int `mapstructure:"collection_interval" env:"EXPORTER_COLLECTION_INTERVAL" validate:"gte=1" comment:"采集间隔（秒）"`
}

// Interval 采集间隔
func (e ExporterConfig) Interval() time.Duration {
	return time.Duration(e.CollectionInterval) * time.Second
}

// Addr 监听地址（所有网卡）
func (e ExporterConfig) Addr() string {
	return ":" + strconv.Itoa(e.Port)
}

// InverterConfig 逆变器（数据采集棒）连接参数
type InverterConfig struct {
	Host         string        `mapstructure:"host" env:"INVERTER_HOST" validate:"required,hostname_rfc1123|ip" comment:"采集棒地址"`
	Port         int           `mapstructure:"port" env:"INVERTER_PORT" validate:"gte=1,lte=65535" comment:"采集棒端口"`
	SerialNumber uint32        `mapstructure:"serial_number" env:"INVERTER_SERIAL" comment:"采集棒序列号（Solarman V5 寻址）"`
	Protocol     string        `mapstructure:"protocol" env:"INVERTER_PROTOCOL" validate:"oneof=solarman modbus-tcp rtu-over-tcp" comment:"传输协议"`
	SlaveID      uint8         `mapstructure:"slave_id" env:"INVERTER_SLAVE_ID" validate:"lte=247" comment:"Modbus 从站地址"`
	Timeout      time.Duration `mapstructure:"timeout" env:"INVERTER_TIMEOUT" validate:"gt=0" comment:"单次请求超时"`
}

// MetricsConfig 采集寄存器选择
type MetricsConfig struct {
	Selection []string `mapstructure:"selection" env:"INVERTER_METRICS" comment:"逗号分隔的寄存器ID，空表示全部"`
}

// ZapLogConfig 日志配置
type ZapLogConfig struct {
	Level   string `mapstructure:"level" env:"LOG_LEVEL" validate:"oneof=debug info warn error" comment:"日志级别"`
	Format  string `mapstructure:"format" env:"LOG_FORMAT" validate:"oneof=json console" comment:"标准输出日志格式（json/console）"`
	Path    string `mapstructure:"path" env:"LOG_PATH" comment:"日志文件目录，空表示只输出到标准输出"`
	MaxSize int    `mapstructure:"max_size" env:"LOG_MAX_SIZE" validate:"gt=0" comment:"单个日志文件最大大小（MB）"`
	MaxAge  int    `mapstructure:"max_age" env:"LOG_MAX_AGE" validate:"gt=0" comment:"日志文件最大保存天数"`
}

// NewDefaultConfig 创建默认配置
func NewDefaultConfig() *Config {
	return &Config{
		Exporter: ExporterConfig{
			Port:               9877,
			CollectionInterval: 15,
		},
		Inverter: InverterConfig{
			Host:         "192.168.100.102",
			Port:         8899,
			SerialNumber: 2999999999,
			Protocol:     "solarman",
			SlaveID:      1,
			Timeout:      10 * time.Second,
		},
		Metrics: MetricsConfig{
			Selection: []string{},
		},
		Log: ZapLogConfig{
			Level:   "info",
			Format:  "console",
			Path:    "",
			MaxSize: 100,
			MaxAge:  7,
		},
	}
}

// binding 配置键与环境变量的对应关系
type binding struct {
	key string
	env string
	def any
}

func bindings() []binding {
	d := NewDefaultConfig()
	return []binding{
		{"exporter.port", "EXPORTER_PORT", d.Exporter.Port},
		{"exporter.collection_interval", "EXPORTER_COLLECTION_INTERVAL", d.Exporter.CollectionInterval},
		{"inverter.host", "INVERTER_HOST", d.Inverter.Host},
		{"inverter.port", "INVERTER_PORT", d.Inverter.Port},
		{"inverter.serial_number", "INVERTER_SERIAL", d.Inverter.SerialNumber},
		{"inverter.protocol", "INVERTER_PROTOCOL", d.Inverter.Protocol},
		{"inverter.slave_id", "INVERTER_SLAVE_ID", d.Inverter.SlaveID},
		{"inverter.timeout", "INVERTER_TIMEOUT", d.Inverter.Timeout},
		{"metrics.selection", "INVERTER_METRICS", ""},
		{"log.level", "LOG_LEVEL", d.Log.Level},
		{"log.format", "LOG_FORMAT", d.Log.Format},
		{"log.path", "LOG_PATH", d.Log.Path},
		{"log.max_size", "LOG_MAX_SIZE", d.Log.MaxSize},
		{"log.max_age", "LOG_MAX_AGE", d.Log.MaxAge},
	}
}

// EnvNames 所有会被读取的环境变量名
func EnvNames() []string {
	bs := bindings()
	out := make([]string, 0, len(bs))
	for _, b := range bs {
		out = append(out, b.env)
	}
	return out
}

// Resolve 以文件内容（section → key → value）和进程环境变量构建有效配置。
// 环境变量为空字符串时视为未设置。
func Resolve(file map[string]map[string]string) (*Config, error) {
	v, err := newViper(file)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

func newViper(file map[string]map[string]string) (*viper.Viper, error) {
	v := viper.New()
	for _, b := range bindings() {
		v.SetDefault(b.key, b.def)
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", b.env, err)
		}
	}

	if len(file) > 0 {
		m := make(map[string]any, len(file))
		for section, kv := range file {
			values := make(map[string]any, len(kv))
			for k, val := range kv {
				values[strings.ToLower(k)] = val
			}
			m[strings.ToLower(section)] = values
		}
		if err := v.MergeConfigMap(m); err != nil {
			return nil, fmt.Errorf("merge config file: %w", err)
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := NewDefaultConfig()

	decoderConfig := &mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			decimalIntHookFunc(),
			secondsToDurationHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}
	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg.Metrics.Selection = normalizeSelection(cfg.Metrics.Selection)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	regs, err := cfg.resolveRegisters()
	if err != nil {
		return nil, err
	}
	cfg.Registers = regs
	return cfg, nil
}

// decimalIntHookFunc 整数只接受十进制写法（WeaklyTypedInput 会按 0x/0o 前缀解析）
func decimalIntHookFunc() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t == durationType {
			return data, nil
		}
		s := strings.TrimSpace(data.(string))
		switch t.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n, err := strconv.ParseInt(s, 10, t.Bits())
			if err != nil {
				return nil, fmt.Errorf("%q is not a decimal integer", s)
			}
			return reflect.ValueOf(n).Convert(t).Interface(), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n, err := strconv.ParseUint(s, 10, t.Bits())
			if err != nil {
				return nil, fmt.Errorf("%q is not a decimal unsigned integer", s)
			}
			return reflect.ValueOf(n).Convert(t).Interface(), nil
		}
		return data, nil
	}
}

// secondsToDurationHookFunc 允许超时写成纯数字（单位秒）
func secondsToDurationHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		s := strings.TrimSpace(data.(string))
		if n, err := strconv.Atoi(s); err == nil {
			return time.Duration(n) * time.Second, nil
		}
		return s, nil
	}
}

// normalizeSelection 去空白、去空项、去重（保留首次出现的顺序）
func normalizeSelection(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, id := range in {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (c *Config) resolveRegisters() ([]registers.Register, error) {
	if len(c.Metrics.Selection) == 0 {
		return registers.All(), nil
	}
	regs, err := registers.Resolve(c.Metrics.Selection)
	if err != nil {
		return nil, fmt.Errorf("%w: metrics.selection: %v", ErrInvalidConfig, err)
	}
	return regs, nil
}

// Validate 配置校验
func (c *Config) Validate() error {
	if err := valid.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, describe(err))
	}
	// 	1，校验逆变器连接配置
	if err := c.Inverter.Validate(); err != nil {
		return err
	}
	// 	2，校验日志配置
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}

// describe 把 validator 的错误转成 "section.key: 规则 (got 值)" 形式
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s must satisfy %s (got %v)", ns, rule, fe.Value()))
	}
	return strings.Join(msgs, "; ")
}
