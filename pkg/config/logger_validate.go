package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//Validate 规则说明
//字段	已通过 tag 校验	额外业务校验
//Level	oneof 预校验	无
//Format	oneof=json console	无
//Path	可为空	非空时必须是可创建的目录
//MaxSize	gt=0	无
//MaxAge	gt=0	无

// Validate 日志配置校验
func (l *ZapLogConfig) Validate() error {
	if err := valid.Struct(l); err != nil {
		return fmt.Errorf("%w: log: %s", ErrInvalidConfig, describe(err))
	}
	if strings.TrimSpace(l.Path) == "" {
		return nil
	}
	// 	校验日志路径(确保可创建)
	abs, err := filepath.Abs(l.Path)
	if err != nil {
		return fmt.Errorf("%w: log.path %s: %v", ErrInvalidConfig, l.Path, err)
	}
	if err := ensureDir(abs); err != nil {
		return fmt.Errorf("%w: log.path %s is not a writable directory: %v", ErrInvalidConfig, l.Path, err)
	}
	return nil
}

func ensureDir(path string) error {
	stat, err := os.Stat(path)
	if os.IsNotExist(err) {
		return os.MkdirAll(path, 0755)
	}
	if err != nil {
		return err
	}
	if !stat.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}
