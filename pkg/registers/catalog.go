package registers

import (
	"fmt"
	"strings"
)

// 三相混合逆变器（SG04LP3 系列）保持寄存器表。
// 顺序即为 All() 的返回顺序，也是空选择时的采集顺序。
var catalog = []Register{
	// -------------------------- 设备信息 --------------------------
	{ID: "DeviceType", Address: 0, Description: "Device Type", Type: Enum, Labels: map[uint16]string{
		0x0002: "String Inverter",
		0x0003: "Single Phase Hybrid Inverter",
		0x0004: "Micro Inverter",
		0x0005: "Three Phase LV Hybrid Inverter",
		0x0006: "Three Phase HV Hybrid Inverter",
	}},
	{ID: "ModbusAddress", Address: 1, Description: "Modbus Address", Type: U16},
	{ID: "SerialNumber", Address: 3, Words: 5, Description: "Serial Number", Type: ASCII},
	{ID: "RatedPower", Address: 20, Description: "Rated Power", Unit: "W", Type: U32, Divisor: 10},
	{ID: "RunningStatus", Address: 500, Description: "Running Status", Type: Enum, Labels: map[uint16]string{
		0: "Standby",
		1: "Self-check",
		2: "Normal",
		3: "Alarm",
		4: "Fault",
	}},

	// -------------------------- 电量统计 --------------------------
	{ID: "TodayActiveEnergy", Address: 502, Description: "Today Active Energy", Unit: "kWh", Type: U16, Divisor: 10},
	{ID: "BatteryChargeToday", Address: 514, Description: "Battery Charge Today", Unit: "kWh", Type: U16, Divisor: 10},
	{ID: "BatteryDischargeToday", Address: 515, Description: "Battery Discharge Today", Unit: "kWh", Type: U16, Divisor: 10},
	{ID: "BatteryChargeTotal", Address: 516, Description: "Battery Charge Total", Unit: "kWh", Type: U32, Divisor: 10},
	{ID: "BatteryDischargeTotal", Address: 518, Description: "Battery Discharge Total", Unit: "kWh", Type: U32, Divisor: 10},
	{ID: "GridBuyToday", Address: 520, Description: "Grid Buy Today", Unit: "kWh", Type: U16, Divisor: 10},
	{ID: "GridSellToday", Address: 521, Description: "Grid Sell Today", Unit: "kWh", Type: U16, Divisor: 10},
	{ID: "GridBuyTotal", Address: 522, Description: "Grid Buy Total", Unit: "kWh", Type: U32, Divisor: 10},
	{ID: "GridSellTotal", Address: 524, Description: "Grid Sell Total", Unit: "kWh", Type: U32, Divisor: 10},
	{ID: "LoadConsumptionToday", Address: 526, Description: "Load Consumption Today", Unit: "kWh", Type: U16, Divisor: 10},
	{ID: "LoadConsumptionTotal", Address: 527, Description: "Load Consumption Total", Unit: "kWh", Type: U32, Divisor: 10},
	{ID: "PVProductionToday", Address: 529, Description: "PV Production Today", Unit: "kWh", Type: U16, Divisor: 10},
	{ID: "PVProductionTotal", Address: 534, Description: "PV Production Total", Unit: "kWh", Type: U32, Divisor: 10},

	// -------------------------- 温度 --------------------------
	{ID: "DCTransformerTemperature", Address: 540, Description: "DC Transformer Temperature", Unit: "°C", Type: Temperature, Divisor: 10},
	{ID: "HeatSinkTemperature", Address: 541, Description: "Heat Sink Temperature", Unit: "°C", Type: Temperature, Divisor: 10},

	// -------------------------- 电池 --------------------------
	{ID: "BatteryTemperature", Address: 586, Description: "Battery Temperature", Unit: "°C", Type: Temperature, Divisor: 10},
	{ID: "BatteryVoltage", Address: 587, Description: "Battery Voltage", Unit: "V", Type: U16, Divisor: 100},
	{ID: "BatterySOC", Address: 588, Description: "Battery SOC", Unit: "%", Type: U16},
	{ID: "BatteryPower", Address: 590, Description: "Battery Power", Unit: "W", Type: S16},
	{ID: "BatteryCurrent", Address: 591, Description: "Battery Current", Unit: "A", Type: S16, Divisor: 100},
	{ID: "BatteryStatus", Address: 590, Description: "Battery Status", Type: Status},

	// -------------------------- 电网 --------------------------
	{ID: "GridVoltageL1", Address: 598, Description: "Grid Voltage L1", Unit: "V", Type: U16, Divisor: 10},
	{ID: "GridVoltageL2", Address: 599, Description: "Grid Voltage L2", Unit: "V", Type: U16, Divisor: 10},
	{ID: "GridVoltageL3", Address: 600, Description: "Grid Voltage L3", Unit: "V", Type: U16, Divisor: 10},
	{ID: "GridFrequency", Address: 609, Description: "Grid Frequency", Unit: "Hz", Type: U16, Divisor: 100},
	{ID: "GridPowerL1", Address: 622, Description: "Grid Power L1", Unit: "W", Type: S16},
	{ID: "GridPowerL2", Address: 623, Description: "Grid Power L2", Unit: "W", Type: S16},
	{ID: "GridPowerL3", Address: 624, Description: "Grid Power L3", Unit: "W", Type: S16},
	{ID: "GridPowerTotal", Address: 625, Description: "Grid Power Total", Unit: "W", Type: S16},

	// -------------------------- 逆变输出 / 负载 --------------------------
	{ID: "InverterPowerL1", Address: 633, Description: "Inverter Power L1", Unit: "W", Type: S16},
	{ID: "InverterPowerL2", Address: 634, Description: "Inverter Power L2", Unit: "W", Type: S16},
	{ID: "InverterPowerL3", Address: 635, Description: "Inverter Power L3", Unit: "W", Type: S16},
	{ID: "InverterPowerTotal", Address: 636, Description: "Inverter Power Total", Unit: "W", Type: S16},
	{ID: "LoadPowerL1", Address: 650, Description: "Load Power L1", Unit: "W", Type: S16},
	{ID: "LoadPowerL2", Address: 651, Description: "Load Power L2", Unit: "W", Type: S16},
	{ID: "LoadPowerL3", Address: 652, Description: "Load Power L3", Unit: "W", Type: S16},
	{ID: "LoadPowerTotal", Address: 653, Description: "Load Power Total", Unit: "W", Type: S16},

	// -------------------------- 光伏 --------------------------
	{ID: "PV1Power", Address: 672, Description: "PV1 Power", Unit: "W", Type: U16},
	{ID: "PV2Power", Address: 673, Description: "PV2 Power", Unit: "W", Type: U16},
	{ID: "PV1Voltage", Address: 676, Description: "PV1 Voltage", Unit: "V", Type: U16, Divisor: 10},
	{ID: "PV1Current", Address: 677, Description: "PV1 Current", Unit: "A", Type: U16, Divisor: 10},
	{ID: "PV2Voltage", Address: 678, Description: "PV2 Voltage", Unit: "V", Type: U16, Divisor: 10},
	{ID: "PV2Current", Address: 679, Description: "PV2 Current", Unit: "A", Type: U16, Divisor: 10},

	// -------------------------- BMS --------------------------
	{ID: "BMSChargeVoltage", Address: 210, Description: "BMS Charge Voltage", Unit: "V", Type: U16, Divisor: 100},
	{ID: "BMSDischargeVoltage", Address: 211, Description: "BMS Discharge Voltage", Unit: "V", Type: U16, Divisor: 100},
	{ID: "BMSChargeCurrentLimit", Address: 212, Description: "BMS Charge Current Limit", Unit: "A", Type: U16},
	{ID: "BMSDischargeCurrentLimit", Address: 213, Description: "BMS Discharge Current Limit", Unit: "A", Type: U16},
	{ID: "BMSBatteryCapacity", Address: 214, Description: "BMS Battery Capacity (%)", Unit: "%", Type: U16},
	{ID: "BMSBatteryVoltage", Address: 215, Description: "BMS Battery Voltage", Unit: "V", Type: U16, Divisor: 100},
	{ID: "BMSBatteryCurrent", Address: 216, Description: "BMS Battery Current", Unit: "A", Type: S16},
	{ID: "BMSBatteryTemperature", Address: 217, Description: "BMS Battery Temperature", Unit: "°C", Type: Temperature, Divisor: 10},
	{ID: "BMSMaxChargeCurrent", Address: 218, Description: "BMS Max Charge Current", Unit: "A", Type: U16},
	{ID: "BMSMaxDischargeCurrent", Address: 219, Description: "BMS Max Discharge Current", Unit: "A", Type: U16},
}

var byID = func() map[string]int {
	idx := make(map[string]int, len(catalog))
	for i, r := range catalog {
		if _, dup := idx[r.ID]; dup {
			panic("registers: duplicate id " + r.ID)
		}
		idx[r.ID] = i
	}
	return idx
}()

// Lookup 按 ID 查找寄存器
func Lookup(id string) (Register, bool) {
	i, ok := byID[id]
	if !ok {
		return Register{}, false
	}
	return catalog[i], true
}

// All 返回全部寄存器的副本，顺序固定
func All() []Register {
	out := make([]Register, len(catalog))
	copy(out, catalog)
	return out
}

// IDs 返回全部寄存器 ID，顺序与 All() 一致
func IDs() []string {
	ids := make([]string, 0, len(catalog))
	for _, r := range catalog {
		ids = append(ids, r.ID)
	}
	return ids
}

// Resolve 按给定顺序解析 ID 列表，未知 ID 一次性全部报告
func Resolve(ids []string) ([]Register, error) {
	out := make([]Register, 0, len(ids))
	var unknown []string
	for _, id := range ids {
		r, ok := Lookup(id)
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		out = append(out, r)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown register ids: %s", strings.Join(unknown, ", "))
	}
	return out, nil
}
