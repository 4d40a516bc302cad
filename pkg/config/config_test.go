package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deye-exporter/pkg/config"
	"github.com/deye-exporter/pkg/registers"
)

// clearEnv 空字符串等同于未设置
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range config.EnvNames() {
		t.Setenv(name, "")
	}
}

func ids(regs []registers.Register) []string {
	out := make([]string, 0, len(regs))
	for _, r := range regs {
		out = append(out, r.ID)
	}
	return out
}

func TestResolveDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Resolve(nil)
	require.NoError(t, err)

	assert.Equal(t, 9877, cfg.Exporter.Port)
	assert.Equal(t, 15, cfg.Exporter.CollectionInterval)
	assert.Equal(t, 15*time.Second, cfg.Exporter.Interval())
	assert.Equal(t, ":9877", cfg.Exporter.Addr())
	assert.Equal(t, "192.168.100.102", cfg.Inverter.Host)
	assert.Equal(t, 8899, cfg.Inverter.Port)
	assert.Equal(t, uint32(2999999999), cfg.Inverter.SerialNumber)
	assert.Equal(t, "solarman", cfg.Inverter.Protocol)
	assert.Equal(t, uint8(1), cfg.Inverter.SlaveID)
	assert.Equal(t, 10*time.Second, cfg.Inverter.Timeout)
	assert.Equal(t, "192.168.100.102:8899", cfg.Inverter.Addr())
	assert.Empty(t, cfg.Metrics.Selection)
	assert.Equal(t, registers.IDs(), ids(cfg.Registers))
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestResolveFileValues(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Resolve(map[string]map[string]string{
		"exporter": {"port": "9100", "collection_interval": "30"},
		"inverter": {"host": "10.0.0.5", "port": "8899", "serial_number": "1234567890", "timeout": "3s"},
		"metrics":  {"selection": "BatterySOC, BatteryPower"},
	})
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Exporter.Port)
	assert.Equal(t, 30, cfg.Exporter.CollectionInterval)
	assert.Equal(t, "10.0.0.5", cfg.Inverter.Host)
	assert.Equal(t, uint32(1234567890), cfg.Inverter.SerialNumber)
	assert.Equal(t, 3*time.Second, cfg.Inverter.Timeout)
	assert.Equal(t, []string{"BatterySOC", "BatteryPower"}, ids(cfg.Registers))
}

func TestEnvironmentOverridesFile(t *testing.T) {
	file := map[string]map[string]string{
		"exporter": {"port": "9100", "collection_interval": "30"},
		"inverter": {"host": "10.0.0.5", "port": "8899", "serial_number": "1234567890", "timeout": "3s"},
		"metrics":  {"selection": "BatterySOC,BatteryPower"},
	}
	cases := []struct {
		env   string
		value string
		check func(t *testing.T, cfg *config.Config)
	}{
		{"EXPORTER_PORT", "9300", func(t *testing.T, cfg *config.Config) {
			assert.Equal(t, 9300, cfg.Exporter.Port)
		}},
		{"EXPORTER_COLLECTION_INTERVAL", "5", func(t *testing.T, cfg *config.Config) {
			assert.Equal(t, 5, cfg.Exporter.CollectionInterval)
		}},
		{"INVERTER_HOST", "inverter.lan", func(t *testing.T, cfg *config.Config) {
			assert.Equal(t, "inverter.lan", cfg.Inverter.Host)
		}},
		{"INVERTER_PORT", "502", func(t *testing.T, cfg *config.Config) {
			assert.Equal(t, 502, cfg.Inverter.Port)
		}},
		{"INVERTER_SERIAL", "3100000001", func(t *testing.T, cfg *config.Config) {
			assert.Equal(t, uint32(3100000001), cfg.Inverter.SerialNumber)
		}},
		{"INVERTER_METRICS", "BatteryStatus", func(t *testing.T, cfg *config.Config) {
			assert.Equal(t, []string{"BatteryStatus"}, cfg.Metrics.Selection)
			assert.Equal(t, []string{"BatteryStatus"}, ids(cfg.Registers))
		}},
		{"INVERTER_TIMEOUT", "2", func(t *testing.T, cfg *config.Config) {
			assert.Equal(t, 2*time.Second, cfg.Inverter.Timeout)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.env, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.env, tc.value)

			cfg, err := config.Resolve(file)
			require.NoError(t, err)
			tc.check(t, cfg)
		})
	}

	// 未被覆盖的键保持文件值
	clearEnv(t)
	t.Setenv("EXPORTER_PORT", "9300")
	cfg, err := config.Resolve(file)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Exporter.CollectionInterval)
	assert.Equal(t, "10.0.0.5", cfg.Inverter.Host)
	assert.Equal(t, []string{"BatterySOC", "BatteryPower"}, ids(cfg.Registers))
}

func TestInverterHostAcceptsIP(t *testing.T) {
	for _, host := range []string{"10.0.0.5", "fe80::1", "inverter.lan"} {
		t.Run(host, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("INVERTER_HOST", host)

			cfg, err := config.Resolve(nil)
			require.NoError(t, err)
			assert.Equal(t, host, cfg.Inverter.Host)
		})
	}

	clearEnv(t)
	t.Setenv("INVERTER_HOST", "fe80::1")
	t.Setenv("INVERTER_PORT", "8899")
	cfg, err := config.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, "[fe80::1]:8899", cfg.Inverter.Addr())
}

func TestEmptyEnvironmentFallsThrough(t *testing.T) {
	clearEnv(t)
	t.Setenv("INVERTER_HOST", "")

	cfg, err := config.Resolve(map[string]map[string]string{
		"inverter": {"host": "inverter.lan"},
	})
	require.NoError(t, err)
	assert.Equal(t, "inverter.lan", cfg.Inverter.Host)

	cfg, err = config.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, "192.168.100.102", cfg.Inverter.Host)
}

func TestSelectionParsing(t *testing.T) {
	clearEnv(t)
	t.Setenv("INVERTER_METRICS", " BatterySOC ,, BatteryStatus,BatterySOC, ")

	cfg, err := config.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"BatterySOC", "BatteryStatus"}, cfg.Metrics.Selection)
	assert.Equal(t, []string{"BatterySOC", "BatteryStatus"}, ids(cfg.Registers))
}

func TestBlankSelectionMeansAll(t *testing.T) {
	clearEnv(t)
	t.Setenv("INVERTER_METRICS", " , ")

	cfg, err := config.Resolve(nil)
	require.NoError(t, err)
	assert.Len(t, cfg.Registers, len(registers.All()))
}

func TestInvalidValuesAreFatal(t *testing.T) {
	cases := map[string]map[string]map[string]string{
		"interval not a number": {"exporter": {"collection_interval": "soon"}},
		"interval zero":         {"exporter": {"collection_interval": "0"}},
		"interval negative":     {"exporter": {"collection_interval": "-5"}},
		"port not a number":     {"exporter": {"port": "http"}},
		"port too large":        {"exporter": {"port": "70000"}},
		"port hexadecimal":      {"exporter": {"port": "0x2000"}},
		"interval octal":        {"exporter": {"collection_interval": "0o17"}},
		"interval fractional":   {"exporter": {"collection_interval": "1.5"}},
		"serial hexadecimal":    {"inverter": {"serial_number": "0xB2D05E00"}},
		"slave id too large":    {"inverter": {"slave_id": "300"}},
		"inverter port zero":    {"inverter": {"port": "0"}},
		"serial not a number":   {"inverter": {"serial_number": "ABC"}},
		"unknown protocol":      {"inverter": {"protocol": "carrier-pigeon"}},
		"bad log level":         {"log": {"level": "chatty"}},
	}
	for name, file := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			_, err := config.Resolve(file)
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func TestUnknownSelectionIsFatal(t *testing.T) {
	clearEnv(t)
	t.Setenv("INVERTER_METRICS", "BatterySOC,Bogus,AlsoBogus")

	_, err := config.Resolve(nil)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "Bogus")
	assert.Contains(t, err.Error(), "AlsoBogus")
}

func TestSolarmanNeedsSerial(t *testing.T) {
	clearEnv(t)
	t.Setenv("INVERTER_SERIAL", "0")
	_, err := config.Resolve(nil)
	require.ErrorIs(t, err, config.ErrInvalidConfig)

	t.Setenv("INVERTER_PROTOCOL", "modbus-tcp")
	_, err = config.Resolve(nil)
	require.NoError(t, err)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadINI(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.ini", `
[Exporter]
port = 9200
collection_interval = 20

[inverter]
host = 192.168.1.50
serial_number = 2712345678

[metrics]
selection = BatteryChargeToday,BMSBatteryVoltage
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Exporter.Port)
	assert.Equal(t, 20, cfg.Exporter.CollectionInterval)
	assert.Equal(t, "192.168.1.50", cfg.Inverter.Host)
	assert.Equal(t, uint32(2712345678), cfg.Inverter.SerialNumber)
	assert.Equal(t, []string{"BatteryChargeToday", "BMSBatteryVoltage"}, ids(cfg.Registers))
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)

	_, err := config.Load(filepath.Join(t.TempDir(), "nope.ini"))
	require.ErrorIs(t, err, config.ErrInvalidConfig)

	// 默认文件不存在时使用默认值
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 9877, cfg.Exporter.Port)
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("INVERTER_HOST", "from-env")
	os.Unsetenv("EXPORTER_PORT")
	t.Cleanup(func() { os.Unsetenv("EXPORTER_PORT") })

	path := writeFile(t, ".env", "INVERTER_HOST=from-dotenv\nEXPORTER_PORT=9300\n")
	require.NoError(t, config.LoadEnvFile(path))
	require.NoError(t, config.LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	cfg, err := config.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Inverter.Host)
	assert.Equal(t, 9300, cfg.Exporter.Port)
}

func TestLoadConfigWithCli(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "warn")
	path := writeFile(t, "exporter.ini", "[log]\nlevel = error\nformat = json\n")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", config.DefaultConfigFile, "")
	cmd.Flags().String("env-file", "", "")
	cmd.Flags().String("log.level", "info", "")
	cmd.Flags().String("log.format", "console", "")
	cmd.Flags().String("log.path", "", "")
	require.NoError(t, cmd.Flags().Set("config", path))

	cfg, err := config.LoadConfigWithCli(cmd)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	require.NoError(t, cmd.Flags().Set("log.level", "debug"))
	cfg, err = config.LoadConfigWithCli(cmd)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}
