package config

import (
	"fmt"
	"net"
	"strconv"
)

// Validate 逆变器连接配置校验
func (i *InverterConfig) Validate() error {
	if err := valid.Struct(i); err != nil {
		return fmt.Errorf("%w: inverter: %s", ErrInvalidConfig, describe(err))
	}
	// Solarman V5 按采集棒序列号寻址，0 一定是没配
	if i.Protocol == "solarman" && i.SerialNumber == 0 {
		return fmt.Errorf("%w: inverter.serial_number is required for protocol solarman", ErrInvalidConfig)
	}
	return nil
}

// Addr 采集棒 host:port
func (i InverterConfig) Addr() string {
	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}
