package inverter

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"go.uber.org/zap"

	"github.com/deye-exporter/pkg/logger"
)

// solarmanHandler 复用 goburrow 的 RTU 打包/校验，传输替换为 Solarman V5 over TCP
type solarmanHandler struct {
	*modbus.RTUClientHandler
	transport *solarmanTransport
}

// Send 覆盖 RTUClientHandler 的串口发送
func (h *solarmanHandler) Send(aduRequest []byte) ([]byte, error) {
	return h.transport.Send(aduRequest)
}

type solarmanTransport struct {
	addr    string
	serial  uint32
	timeout time.Duration

	conn net.Conn
	seq  uint8
	ctx  context.Context
}

func (t *solarmanTransport) connect() error {
	if t.conn != nil {
		return nil
	}
	d := net.Dialer{Timeout: t.timeout}
	conn, err := d.DialContext(t.ctx, "tcp", t.addr)
	if err != nil {
		return fmt.Errorf("dial data logger %s: %w", t.addr, err)
	}
	t.conn = conn
	logger.Debug("connected to data logger", logger.Component("inverter"), zap.String("addr", t.addr))
	return nil
}

func (t *solarmanTransport) drop() {
	if t.conn == nil {
		return
	}
	_ = t.conn.Close()
	t.conn = nil
}

func (t *solarmanTransport) deadline() time.Time {
	d := time.Now().Add(t.timeout)
	if ctxDeadline, ok := t.ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

// Send 发送一个 RTU 帧并返回对应的 RTU 响应；传输出错时断开连接，下次请求重新拨号
func (t *solarmanTransport) Send(aduRequest []byte) ([]byte, error) {
	if err := t.ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.connect(); err != nil {
		return nil, err
	}

	t.seq++
	seq := t.seq
	if err := t.conn.SetDeadline(t.deadline()); err != nil {
		t.drop()
		return nil, err
	}

	// ctx 取消时让阻塞中的读写立即返回
	conn := t.conn
	stop := context.AfterFunc(t.ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := t.conn.Write(encodeV5Request(t.serial, seq, aduRequest)); err != nil {
		t.drop()
		return nil, fmt.Errorf("write request: %w", err)
	}

	for {
		frame, err := readV5Frame(t.conn)
		if err != nil {
			t.drop()
			if ctxErr := t.ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("read response: %w", err)
		}
		// 心跳帧和过期序号的响应直接丢弃
		if c := v5Control(frame); c != controlResponse {
			logger.Debug("skipping data logger frame", logger.Component("inverter"), zap.Uint16("control", c))
			continue
		}
		if frame[5] != seq {
			logger.Debug("skipping stale response", logger.Component("inverter"), zap.Uint8("seq", frame[5]), zap.Uint8("want", seq))
			continue
		}
		adu, err := decodeV5Response(frame, seq)
		if err != nil && !errors.Is(err, ErrNoModbusResponse) {
			t.drop()
		}
		return adu, err
	}
}

// SolarmanSource 通过 Solarman V5 数据采集棒读取保持寄存器
type SolarmanSource struct {
	mu        sync.Mutex
	transport *solarmanTransport
	client    modbus.Client
}

// NewSolarmanSource addr 为采集棒 host:port，serial 为采集棒序列号
func NewSolarmanSource(addr string, serial uint32, slaveID uint8, timeout time.Duration) *SolarmanSource {
	t := &solarmanTransport{
		addr:    addr,
		serial:  serial,
		timeout: timeout,
		seq:     uint8(rand.Intn(256)),
		ctx:     context.Background(),
	}
	h := &solarmanHandler{
		RTUClientHandler: modbus.NewRTUClientHandler(addr),
		transport:        t,
	}
	h.SlaveId = slaveID
	h.Timeout = timeout
	return &SolarmanSource{
		transport: t,
		client:    modbus.NewClient(h),
	}
}

// ReadHoldingRegisters 读取 quantity 个保持寄存器（功能码 0x03）
func (s *SolarmanSource) ReadHoldingRegisters(ctx context.Context, address, quantity uint16) ([]uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transport.ctx = ctx
	defer func() { s.transport.ctx = context.Background() }()

	data, err := s.client.ReadHoldingRegisters(address, quantity)
	if err != nil {
		return nil, err
	}
	return bytesToWords(data, quantity)
}

// Close 关闭到采集棒的连接
func (s *SolarmanSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport.drop()
	return nil
}

func bytesToWords(data []byte, quantity uint16) ([]uint16, error) {
	if len(data) != int(quantity)*2 {
		return nil, fmt.Errorf("expected %d bytes, got %d", int(quantity)*2, len(data))
	}
	words := make([]uint16, quantity)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return words, nil
}
