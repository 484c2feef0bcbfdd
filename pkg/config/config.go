package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Safe    SafeConfig    `mapstructure:"safe"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Signer  SignerConfig  `mapstructure:"signer"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

type SafeConfig struct {
	DefaultVersion string `mapstructure:"default_version"` // metadata 未提供 version 时使用
}

// RedisConfig 为空 Addr 时使用进程内 nonce 存储
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type SignerConfig struct {
	KeystorePath   string `mapstructure:"keystore_path"`
	DerivationPath string `mapstructure:"derivation_path"`
	Password       string `mapstructure:"password"` // 通常通过环境变量 SAFE_LEDGER_SIGNER_PASSWORD 传入
	CastBinary     string `mapstructure:"cast_binary"`
}

type MetricsConfig struct {
	File string `mapstructure:"file"`
}

var Global Config

// Init loads the configuration into Global.
// An empty path searches config.yaml in the working directory and ./config.
// A missing file is not an error: defaults and environment variables apply.
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	Global = *cfg
	return nil
}

// Load reads a configuration without touching Global.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // name of config file (without extension)
		v.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// 环境变量设置: SAFE_LEDGER_REDIS_ADDR -> redis.addr
	v.SetEnvPrefix("SAFE_LEDGER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("safe.default_version", "1.4.1")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "safe-ledger:nonce:")

	v.SetDefault("signer.keystore_path", "wallet.json")
	v.SetDefault("signer.derivation_path", "m/44'/60'/0'/0/0")
	v.SetDefault("signer.password", "")
	v.SetDefault("signer.cast_binary", "cast")

	v.SetDefault("metrics.file", "")
}
