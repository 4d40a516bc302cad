package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/ini.v1"
)

const (
	DefaultConfigFile = "config.ini"
	DefaultEnvFile    = ".env"
)

// ReadINI 读取 INI 文件为 section → key → value，键名统一小写
func ReadINI(path string) (map[string]map[string]string, error) {
	f, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	out := make(map[string]map[string]string)
	for _, sec := range f.Sections() {
		if len(sec.Keys()) == 0 {
			continue
		}
		kv := make(map[string]string, len(sec.Keys()))
		for _, k := range sec.Keys() {
			kv[k.Name()] = k.String()
		}
		out[sec.Name()] = kv
	}
	return out, nil
}

// LoadEnvFile 加载 .env 文件到进程环境，不覆盖已存在的变量；文件不存在时忽略
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load 读取配置文件并叠加环境变量。path 为空时使用默认文件，默认文件不存在时只用默认值和环境变量；
// 显式指定的文件不存在则报错。
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	file, err := readOptional(path, explicit)
	if err != nil {
		return nil, err
	}
	return Resolve(file)
}

func readOptional(path string, explicit bool) (map[string]map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: config file %s: %v", ErrInvalidConfig, path, err)
	}
	return ReadINI(path)
}

// LoadConfigWithCli (Flags + INI + ENV + .env)
// 命令行 --log.* 覆盖环境变量，环境变量覆盖 INI 文件，INI 文件覆盖默认值
func LoadConfigWithCli(cmd *cobra.Command) (*Config, error) {
	flags := cmd.Flags()

	// 1. 先加载 .env（不覆盖已有环境变量）
	envFile, _ := flags.GetString("env-file")
	if err := LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	// 2. 解析配置文件 (--config)
	configFile, _ := flags.GetString("config")
	if configFile == "" {
		configFile = DefaultConfigFile
	}
	file, err := readOptional(configFile, flags.Changed("config"))
	if err != nil {
		return nil, err
	}

	// 3. 默认值 + 文件 + ENV
	v, err := newViper(file)
	if err != nil {
		return nil, err
	}

	// 4. 绑定 Cobra Flags → Viper（只有显式传入的 flag 生效）
	for _, key := range []string{"log.level", "log.format", "log.path"} {
		if f := flags.Lookup(key); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", key, err)
			}
		}
	}

	// 5. 解码并校验
	return decode(v)
}
