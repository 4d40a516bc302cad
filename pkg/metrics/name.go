package metrics

import (
	"regexp"
	"strings"
)

const (
	namePrefix = "deye_"
	infoSuffix = "_info"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// MetricName 由寄存器描述推导 Prometheus 指标名：
// 小写、非字母数字连续段折叠为单个下划线、去掉首尾下划线、加 deye_ 前缀，文本类型追加 _info。
func MetricName(description string, kind Kind) string {
	base := strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(description), "_"), "_")
	name := namePrefix + base
	if kind == Textual {
		name += infoSuffix
	}
	return name
}
