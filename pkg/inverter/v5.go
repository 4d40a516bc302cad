package inverter

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Solarman V5 帧：
//
//	A5 | len(2,LE) | control(2,LE) | seq(2) | logger serial(4,LE) | payload | checksum | 15
//
// 请求 payload = frametype(1)=0x02 + sensortype(2) + 3 个 4 字节时间 + Modbus RTU 帧；
// 响应 payload = frametype(1) + status(1) + 3 个 4 字节时间 + Modbus RTU 帧。
const (
	v5Start  byte = 0xA5
	v5End    byte = 0x15
	v5Header      = 11

	v5RequestPayloadHeader  = 15
	v5ResponsePayloadHeader = 14
	v5MaxPayload            = 1024

	controlRequest   uint16 = 0x4510
	controlResponse  uint16 = 0x1510
	controlHeartbeat uint16 = 0x4710
)

var (
	ErrFrame            = errors.New("solarman: malformed V5 frame")
	ErrNoModbusResponse = errors.New("solarman: data logger returned no modbus response")
)

func v5Checksum(b []byte) byte {
	var sum byte
	for _, c := range b {
		sum += c
	}
	return sum
}

// encodeV5Request 把 Modbus RTU 帧封装为 V5 请求帧
func encodeV5Request(serial uint32, seq uint8, adu []byte) []byte {
	payloadLen := v5RequestPayloadHeader + len(adu)
	frame := make([]byte, 0, v5Header+payloadLen+2)
	frame = append(frame, v5Start)
	frame = binary.LittleEndian.AppendUint16(frame, uint16(payloadLen))
	frame = binary.LittleEndian.AppendUint16(frame, controlRequest)
	frame = append(frame, seq, 0x00)
	frame = binary.LittleEndian.AppendUint32(frame, serial)
	frame = append(frame, 0x02, 0x00, 0x00) // frametype, sensortype
	frame = append(frame, make([]byte, 12)...)
	frame = append(frame, adu...)
	frame = append(frame, v5Checksum(frame[1:]), v5End)
	return frame
}

// readV5Frame 从流中读出一个完整的 V5 帧（只校验起始字节和长度）
func readV5Frame(r io.Reader) ([]byte, error) {
	header := make([]byte, v5Header)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	if header[0] != v5Start {
		return nil, fmt.Errorf("%w: start byte 0x%02X", ErrFrame, header[0])
	}
	payloadLen := int(binary.LittleEndian.Uint16(header[1:3]))
	if payloadLen > v5MaxPayload {
		return nil, fmt.Errorf("%w: payload length %d", ErrFrame, payloadLen)
	}
	frame := make([]byte, v5Header+payloadLen+2)
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[v5Header:]); err != nil {
		return nil, err
	}
	return frame, nil
}

func v5Control(frame []byte) uint16 {
	return binary.LittleEndian.Uint16(frame[3:5])
}

// decodeV5Response 校验响应帧并取出其中的 Modbus RTU 帧
func decodeV5Response(frame []byte, seq uint8) ([]byte, error) {
	if len(frame) < v5Header+v5ResponsePayloadHeader+2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrame, len(frame))
	}
	if frame[0] != v5Start || frame[len(frame)-1] != v5End {
		return nil, fmt.Errorf("%w: bad start/end byte", ErrFrame)
	}
	if got := int(binary.LittleEndian.Uint16(frame[1:3])); got != len(frame)-v5Header-2 {
		return nil, fmt.Errorf("%w: length field %d, frame carries %d", ErrFrame, got, len(frame)-v5Header-2)
	}
	if c := v5Control(frame); c != controlResponse {
		return nil, fmt.Errorf("%w: control 0x%04X", ErrFrame, c)
	}
	if frame[5] != seq {
		return nil, fmt.Errorf("%w: sequence %d, expected %d", ErrFrame, frame[5], seq)
	}
	if want := v5Checksum(frame[1 : len(frame)-2]); frame[len(frame)-2] != want {
		return nil, fmt.Errorf("%w: checksum 0x%02X, expected 0x%02X", ErrFrame, frame[len(frame)-2], want)
	}

	adu := frame[v5Header+v5ResponsePayloadHeader : len(frame)-2]
	// 采集棒联系不上逆变器时只回 V5 头
	if len(adu) < 5 {
		return nil, ErrNoModbusResponse
	}
	return adu, nil
}
