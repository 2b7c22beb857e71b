package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Fees     FeesConfig     `mapstructure:"fees"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Assets   []AssetConfig  `mapstructure:"assets"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

type AuthConfig struct {
	AdminKey string `mapstructure:"admin_key"`
	// 链上身份：Admin 操作以该地址作为 caller 进入核心校验
	AdminAddress string `mapstructure:"admin_address"`
}

type DatabaseConfig struct {
	DSN                string `mapstructure:"dsn"`
	EventRetentionDays int    `mapstructure:"event_retention_days"`
}

type RedisConfig struct {
	Addr                  string `mapstructure:"addr"`
	Password              string `mapstructure:"password"`
	DB                    int    `mapstructure:"db"`
	EventListKey          string `mapstructure:"event_list_key"`
	EventListMax          int    `mapstructure:"event_list_max"`
	IdempotencyTTLSeconds int    `mapstructure:"idempotency_ttl_seconds"`
}

type ChainConfig struct {
	RPCURL  string `mapstructure:"rpc_url"`
	ChainID int64  `mapstructure:"chain_id"`
	// 执行转账交易的操作者私钥（留空则使用内存账本，适合开发环境）
	PrivateKey string `mapstructure:"private_key"`
}

type EngineConfig struct {
	// 周期长度（秒），默认一周
	PeriodLengthSeconds int64 `mapstructure:"period_length_seconds"`
	// Bot 触发接口限流
	ExecutorQPS   float64 `mapstructure:"executor_qps"`
	ExecutorBurst int     `mapstructure:"executor_burst"`
}

type FeesConfig struct {
	BotFeeBps       uint64 `mapstructure:"bot_fee_bps"`
	DaoFeeBps       uint64 `mapstructure:"dao_fee_bps"`
	DaoFeeRecipient string `mapstructure:"dao_fee_recipient"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type AssetConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Address  string `mapstructure:"address"`
	Decimals int32  `mapstructure:"decimals"`
	DebtSink string `mapstructure:"debt_sink"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. RENT2REPAY_FEES_BOT_FEE_BPS
	viper.SetEnvPrefix("rent2repay")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("auth.admin_key", "")
	viper.SetDefault("engine.period_length_seconds", 604800) // one week
	viper.SetDefault("engine.executor_qps", 10)
	viper.SetDefault("engine.executor_burst", 20)
	viper.SetDefault("fees.bot_fee_bps", 50)
	viper.SetDefault("fees.dao_fee_bps", 20)
	viper.SetDefault("redis.event_list_key", "r2r_events")
	viper.SetDefault("redis.event_list_max", 10000)
	viper.SetDefault("redis.idempotency_ttl_seconds", 86400)
	viper.SetDefault("database.event_retention_days", 30)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("chain.chain_id", 100) // Gnosis

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
