// Package inverter 负责与逆变器通信：按寄存器描述读取原始字并解码。
package inverter

import (
	"context"
	"fmt"

	"github.com/deye-exporter/pkg/config"
	"github.com/deye-exporter/pkg/registers"
)

// RegisterSource 保持寄存器读取（Solarman V5 或 Modbus TCP）
type RegisterSource interface {
	ReadHoldingRegisters(ctx context.Context, address, quantity uint16) ([]uint16, error)
	Close() error
}

// Reader 按寄存器描述读取并解码为 float64 或 string
type Reader struct {
	src RegisterSource
}

func NewReader(src RegisterSource) *Reader {
	return &Reader{src: src}
}

// New 按配置的协议创建 Reader
func New(cfg config.InverterConfig) (*Reader, error) {
	addr := cfg.Addr()
	switch cfg.Protocol {
	case "", "solarman":
		return NewReader(NewSolarmanSource(addr, cfg.SerialNumber, cfg.SlaveID, cfg.Timeout)), nil
	case "modbus-tcp":
		src, err := NewModbusSource("tcp://"+addr, cfg.SlaveID, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return NewReader(src), nil
	case "rtu-over-tcp":
		src, err := NewModbusSource("rtuovertcp://"+addr, cfg.SlaveID, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return NewReader(src), nil
	default:
		return nil, fmt.Errorf("unsupported inverter protocol %q", cfg.Protocol)
	}
}

// ReadRegister 读取并解码一个寄存器
func (r *Reader) ReadRegister(ctx context.Context, reg registers.Register) (any, error) {
	words, err := r.src.ReadHoldingRegisters(ctx, reg.Address, reg.Quantity())
	if err != nil {
		return nil, fmt.Errorf("read %s at %d: %w", reg.ID, reg.Address, err)
	}
	v, err := reg.Decode(words)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", reg.ID, err)
	}
	return v, nil
}

func (r *Reader) Close() error {
	return r.src.Close()
}
