package registers

import (
	"errors"
	"fmt"
	"strings"
)

// Type 寄存器原始字的解码方式
type Type int

const (
	U16         Type = iota // 无符号单字
	S16                     // 有符号单字
	U32                     // 双字，低字在前
	Temperature             // 单字，偏移 1000
	Enum                    // 状态码 → 文本
	ASCII                   // 每字两个字符，高字节在前
	Status                  // 有符号功率的方向 → 文本
)

func (t Type) String() string {
	switch t {
	case U16:
		return "u16"
	case S16:
		return "s16"
	case U32:
		return "u32"
	case Temperature:
		return "temperature"
	case Enum:
		return "enum"
	case ASCII:
		return "ascii"
	case Status:
		return "status"
	default:
		return "unknown"
	}
}

const temperatureOffset = 1000

var ErrShortRead = errors.New("registers: not enough words")

// Register 描述一个可读取的保持寄存器，进程启动后不可变。
// ID 是配置选择、目录查找和指标注册表之间的连接键。
type Register struct {
	ID          string
	Address     uint16
	Words       uint16
	Description string
	Unit        string
	Type        Type
	Divisor     float64
	Labels      map[uint16]string
}

// Help 返回指标帮助文本（描述 + 单位）
func (r Register) Help() string {
	if r.Unit == "" || strings.HasSuffix(r.Description, "("+r.Unit+")") {
		return r.Description
	}
	return fmt.Sprintf("%s (%s)", r.Description, r.Unit)
}

// Quantity 需要读取的寄存器个数
func (r Register) Quantity() uint16 {
	if r.Words > 0 {
		return r.Words
	}
	if r.Type == U32 {
		return 2
	}
	return 1
}

// Decode 将原始寄存器字转换为 float64（数值）或 string（文本）
func (r Register) Decode(words []uint16) (any, error) {
	if len(words) < int(r.Quantity()) {
		return nil, fmt.Errorf("%w: %s needs %d, got %d", ErrShortRead, r.ID, r.Quantity(), len(words))
	}
	switch r.Type {
	case U16:
		return r.scale(float64(words[0])), nil
	case S16:
		return r.scale(float64(int16(words[0]))), nil
	case U32:
		return r.scale(float64(uint32(words[0]) | uint32(words[1])<<16)), nil
	case Temperature:
		return r.scale(float64(int(words[0]) - temperatureOffset)), nil
	case Enum:
		if label, ok := r.Labels[words[0]]; ok {
			return label, nil
		}
		return fmt.Sprintf("Unknown (%d)", words[0]), nil
	case ASCII:
		return decodeASCII(words[:r.Quantity()]), nil
	case Status:
		switch power := int16(words[0]); {
		case power > 0:
			return "Discharging", nil
		case power < 0:
			return "Charging", nil
		default:
			return "Idle", nil
		}
	default:
		return nil, fmt.Errorf("registers: %s has unsupported type %s", r.ID, r.Type)
	}
}

func (r Register) scale(v float64) float64 {
	if r.Divisor == 0 || r.Divisor == 1 {
		return v
	}
	return v / r.Divisor
}

func decodeASCII(words []uint16) string {
	b := make([]byte, 0, len(words)*2)
	for _, w := range words {
		b = append(b, byte(w>>8), byte(w))
	}
	return strings.TrimSpace(strings.Trim(string(b), "\x00"))
}
