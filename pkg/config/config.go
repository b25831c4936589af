// Package config 提供 TOML 配置加载、环境变量覆盖与校验
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/wyfcoding/vectorplus/pkg/cache"
	"github.com/wyfcoding/vectorplus/pkg/db"
	"github.com/wyfcoding/vectorplus/pkg/logger"
	"github.com/wyfcoding/vectorplus/pkg/mq"
	"github.com/wyfcoding/vectorplus/pkg/ratelimit"
)

// Config 服务配置
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`

	HTTP      HTTPConfig       `mapstructure:"http"`
	GRPC      GRPCConfig       `mapstructure:"grpc"`
	Database  db.Config        `mapstructure:"database"`
	Redis     cache.Config     `mapstructure:"redis"`
	Kafka     mq.Config        `mapstructure:"kafka"`
	Logger    logger.Config    `mapstructure:"logger"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
	RateLimit ratelimit.Config `mapstructure:"ratelimit"`
	Strategy  StrategyConfig   `mapstructure:"strategy"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr 监听地址
func (c HTTPConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// GRPCConfig gRPC 服务配置
type GRPCConfig struct {
	Host                 string `mapstructure:"host"`
	Port                 int    `mapstructure:"port"`
	MaxConcurrentStreams uint32 `mapstructure:"max_concurrent_streams"`
}

// Addr 监听地址
func (c GRPCConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// MetricsConfig 指标配置，指标挂在 HTTP 服务上
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// StrategyConfig 策略相关配置
type StrategyConfig struct {
	// mainnet, sepolia ...
	Network      string            `mapstructure:"network"`
	RPCURL       string            `mapstructure:"rpc_url"`
	Contracts    ContractsConfig   `mapstructure:"contracts"`
	GasEstimates map[string]uint64 `mapstructure:"gas_estimates"`
	Volatility   VolatilityConfig  `mapstructure:"volatility"`
	TWAP         TWAPConfig        `mapstructure:"twap"`
	Options      OptionsConfig     `mapstructure:"options"`
}

// ContractsConfig 已部署合约地址
type ContractsConfig struct {
	VolatilityCalculator string `mapstructure:"volatility_calculator"`
	TWAPExecutor         string `mapstructure:"twap_executor"`
	OptionsCalculator    string `mapstructure:"options_calculator"`
}

// VolatilityConfig 波动率模板默认值
type VolatilityConfig struct {
	BaselineVolatility uint64 `mapstructure:"baseline_volatility"`
	MaxExecutionSize   string `mapstructure:"max_execution_size"`
	MinExecutionSize   string `mapstructure:"min_execution_size"`
	ConservativeMode   bool   `mapstructure:"conservative_mode"`
}

// TWAPConfig TWAP 模板默认值
type TWAPConfig struct {
	Duration           uint64 `mapstructure:"duration"` // 秒
	Intervals          uint64 `mapstructure:"intervals"`
	RandomizeExecution bool   `mapstructure:"randomize_execution"`
	AdaptiveIntervals  bool   `mapstructure:"adaptive_intervals"`
}

// OptionsConfig 期权默认值
type OptionsConfig struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	ImpliedVolatility uint64        `mapstructure:"implied_volatility"` // 基点
}

// Load 从 TOML 文件加载配置，支持 APP_ 前缀环境变量覆盖。文件不存在时使用默认值
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.GRPC.Port <= 0 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}

	switch c.Database.Driver {
	case "memory":
	case "mysql":
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for mysql driver")
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when redis is enabled")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka brokers and topic are required when kafka is enabled")
	}
	if c.RateLimit.Enabled && (c.RateLimit.QPS <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("ratelimit qps and burst must be positive")
	}
	return c.Strategy.Validate()
}

// Validate 校验策略默认值
func (s *StrategyConfig) Validate() error {
	if s.Volatility.BaselineVolatility == 0 {
		return fmt.Errorf("strategy.volatility.baseline_volatility must be positive")
	}
	maxSize, err := decimal.NewFromString(s.Volatility.MaxExecutionSize)
	if err != nil {
		return fmt.Errorf("invalid strategy.volatility.max_execution_size: %w", err)
	}
	minSize, err := decimal.NewFromString(s.Volatility.MinExecutionSize)
	if err != nil {
		return fmt.Errorf("invalid strategy.volatility.min_execution_size: %w", err)
	}
	if maxSize.LessThan(minSize) {
		return fmt.Errorf("strategy.volatility.max_execution_size must not be below min_execution_size")
	}
	if s.TWAP.Duration == 0 || s.TWAP.Intervals == 0 || s.TWAP.Intervals > s.TWAP.Duration {
		return fmt.Errorf("strategy.twap duration and intervals must be positive with intervals <= duration")
	}
	if s.Options.DefaultExpiration < 5*time.Minute || s.Options.DefaultExpiration > 30*24*time.Hour {
		return fmt.Errorf("strategy.options.default_expiration must be between 5m and 720h")
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "vectorplus")
	v.SetDefault("version", "dev")
	v.SetDefault("environment", "dev")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "30s")
	v.SetDefault("http.write_timeout", "30s")

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("grpc.max_concurrent_streams", 1000)

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 200)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.ttl", "10m")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "vectorplus.options")
	v.SetDefault("kafka.max_attempts", 3)
	v.SetDefault("kafka.retry_backoff", "100ms")
	v.SetDefault("kafka.batch_timeout", "10ms")
	v.SetDefault("kafka.breaker_failures", 5)
	v.SetDefault("kafka.breaker_open_delay", "30s")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/vectorplus.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.qps", 20)
	v.SetDefault("ratelimit.burst", 40)

	v.SetDefault("strategy.network", "mainnet")
	v.SetDefault("strategy.gas_estimates", map[string]uint64{
		"volatility": 45000,
		"twap":       65000,
		"options":    85000,
		"combined":   110000,
	})
	v.SetDefault("strategy.volatility.baseline_volatility", 300)
	v.SetDefault("strategy.volatility.max_execution_size", "5000000000000000000")
	v.SetDefault("strategy.volatility.min_execution_size", "100000000000000000")
	v.SetDefault("strategy.volatility.conservative_mode", false)
	v.SetDefault("strategy.twap.duration", 7200)
	v.SetDefault("strategy.twap.intervals", 12)
	v.SetDefault("strategy.twap.randomize_execution", true)
	v.SetDefault("strategy.twap.adaptive_intervals", true)
	v.SetDefault("strategy.options.default_expiration", "168h")
	v.SetDefault("strategy.options.implied_volatility", 8000)
}
