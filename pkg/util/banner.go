package util

import (
	"fmt"
	"io"
	"strings"

	"github.com/common-nighthawk/go-figure"
)

// 定义颜色常量
const (
	ColorReset  = "\x1b[0m"
	ColorRed    = "\x1b[1;31m"
	ColorGreen  = "\x1b[1;32m"
	ColorYellow = "\x1b[1;33m"
	ColorBlue   = "\x1b[1;34m"
	ColorCyan   = "\x1b[1;36m"
)

var colors = map[string]string{
	"ColorRed":    ColorRed,
	"ColorGreen":  ColorGreen,
	"ColorYellow": ColorYellow,
	"ColorBlue":   ColorBlue,
	"ColorCyan":   ColorCyan,
}

// Banner 返回 ASCII banner 的各行（不含颜色）
func Banner(text string) []string {
	lines := figure.NewFigure(text, "", true).Slicify()
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

// PrintBanner 打印整体统一颜色的 ASCII banner，未知颜色名不着色
func PrintBanner(w io.Writer, text string, color string) {
	ansi, ok := colors[color]
	for _, line := range Banner(text) {
		if ok {
			fmt.Fprintln(w, ansi+line+ColorReset)
			continue
		}
		fmt.Fprintln(w, line)
	}
}
