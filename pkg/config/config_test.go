package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vectorplus.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "vectorplus", cfg.ServiceName)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, "mainnet", cfg.Strategy.Network)
	assert.Equal(t, uint64(300), cfg.Strategy.Volatility.BaselineVolatility)
	assert.Equal(t, "5000000000000000000", cfg.Strategy.Volatility.MaxExecutionSize)
	assert.Equal(t, uint64(7200), cfg.Strategy.TWAP.Duration)
	assert.Equal(t, uint64(12), cfg.Strategy.TWAP.Intervals)
	assert.True(t, cfg.Strategy.TWAP.AdaptiveIntervals)
	assert.Equal(t, 168*time.Hour, cfg.Strategy.Options.DefaultExpiration)
	assert.Equal(t, uint64(8000), cfg.Strategy.Options.ImpliedVolatility)
	assert.Equal(t, uint64(85000), cfg.Strategy.GasEstimates["options"])
	assert.Equal(t, 10*time.Minute, cfg.Redis.TTL)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
service_name = "vectorplus-test"

[http]
port = 9000

[database]
driver = "mysql"
dsn = "user:pass@tcp(localhost:3306)/vectorplus?parseTime=true"

[strategy]
network = "sepolia"

[strategy.contracts]
twap_executor = "0x0000000000000000000000000000000000000001"

[strategy.twap]
intervals = 6
`)
	t.Setenv("APP_GRPC_PORT", "6000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "vectorplus-test", cfg.ServiceName)
	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, 6000, cfg.GRPC.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "sepolia", cfg.Strategy.Network)
	assert.Equal(t, "0x0000000000000000000000000000000000000001", cfg.Strategy.Contracts.TWAPExecutor)
	assert.Equal(t, uint64(6), cfg.Strategy.TWAP.Intervals)
	assert.Equal(t, uint64(7200), cfg.Strategy.TWAP.Duration)
	assert.Equal(t, "0.0.0.0:9000", cfg.HTTP.Addr())
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"mysql without dsn": `
[database]
driver = "mysql"
`,
		"unknown driver": `
[database]
driver = "sqlite"
`,
		"kafka without brokers": `
[kafka]
enabled = true
`,
		"min above max": `
[strategy.volatility]
min_execution_size = "6000000000000000000"
`,
		"more intervals than seconds": `
[strategy.twap]
duration = 5
intervals = 10
`,
		"bad expiration": `
[strategy.options]
default_expiration = "1m"
`,
	}
	for name, body := range cases {
		_, err := Load(writeConfig(t, body))
		assert.Error(t, err, name)
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
