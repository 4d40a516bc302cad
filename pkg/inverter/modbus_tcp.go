package inverter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"

	"github.com/deye-exporter/pkg/logger"
)

// ModbusSource 直连 Modbus TCP 或 RTU-over-TCP 网关
type ModbusSource struct {
	mu     sync.Mutex
	url    string
	client *modbus.ModbusClient
	open   bool
}

// NewModbusSource url 形如 tcp://host:502 或 rtuovertcp://host:8899
func NewModbusSource(url string, slaveID uint8, timeout time.Duration) (*ModbusSource, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     url,
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create modbus client %s: %w", url, err)
	}
	if err := client.SetUnitId(slaveID); err != nil {
		return nil, fmt.Errorf("set unit id %d: %w", slaveID, err)
	}
	return &ModbusSource{url: url, client: client}, nil
}

// ReadHoldingRegisters 读取保持寄存器；非 Modbus 异常的错误会断开连接，下次重连
func (s *ModbusSource) ReadHoldingRegisters(ctx context.Context, address, quantity uint16) ([]uint16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		if err := s.client.Open(); err != nil {
			return nil, fmt.Errorf("open %s: %w", s.url, err)
		}
		s.open = true
		logger.Debug("connected to modbus gateway", logger.Component("inverter"), zap.String("url", s.url))
	}

	words, err := s.client.ReadRegisters(address, quantity, modbus.HOLDING_REGISTER)
	if err != nil {
		if !isException(err) {
			_ = s.client.Close()
			s.open = false
		}
		return nil, err
	}
	return words, nil
}

// isException 设备正常应答的 Modbus 异常，连接本身可继续使用
func isException(err error) bool {
	for _, e := range []error{
		modbus.ErrIllegalFunction,
		modbus.ErrIllegalDataAddress,
		modbus.ErrIllegalDataValue,
		modbus.ErrServerDeviceFailure,
		modbus.ErrServerDeviceBusy,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// Close 关闭连接
func (s *ModbusSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false
	return s.client.Close()
}
