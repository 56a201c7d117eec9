package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"oculoo/pkg/config"
)

type DispatchConfig struct {
	// 同一事件的处理锁有效期（秒）
	InFlightTTLSeconds int `yaml:"inflight_ttl_seconds"`
	Prefetch           int `yaml:"prefetch"`
}

type RetentionConfig struct {
	MaxAgeHours   int `yaml:"max_age_hours"`
	IntervalHours int `yaml:"interval_hours"`
}

type OutboxConfig struct {
	IntervalMS int `yaml:"interval_ms"`
	BatchSize  int `yaml:"batch_size"`
	MaxRetries int `yaml:"max_retries"`
}

type Config struct {
	DB        config.DBConfig     `yaml:"db"`
	MQ        config.MQConfig     `yaml:"mq"`
	Redis     config.RedisConfig  `yaml:"redis"`
	JWT       config.JWTConfig    `yaml:"jwt"`
	Server    config.ServerConfig `yaml:"server"`
	FCM       config.FCMConfig    `yaml:"fcm"`
	Log       config.LogConfig    `yaml:"log"`
	Dispatch  DispatchConfig      `yaml:"dispatch"`
	Retention RetentionConfig     `yaml:"retention"`
	Outbox    OutboxConfig        `yaml:"outbox"`
}

func (c DispatchConfig) InFlightTTL() time.Duration {
	return time.Duration(c.InFlightTTLSeconds) * time.Second
}

func (c RetentionConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}

func (c RetentionConfig) Interval() time.Duration {
	return time.Duration(c.IntervalHours) * time.Hour
}

func (c OutboxConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// Load 使用统一配置中心加载配置，失败时直接退出
func Load() *Config {
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	cfg, err := LoadFrom(env, configDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func LoadFrom(env, configDir string) (*Config, error) {
	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := config.Decode(cfgMap, &cfg); err != nil {
		return nil, err
	}

	// 环境变量覆盖（优先级最高）
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideFCMFromEnv(&cfg.FCM)
	overrideFromEnv(&cfg)

	applyDefaults(&cfg)
	return &cfg, nil
}

func overrideFromEnv(cfg *Config) {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if hours := os.Getenv("RETENTION_MAX_AGE_HOURS"); hours != "" {
		if h, err := strconv.Atoi(hours); err == nil {
			cfg.Retention.MaxAgeHours = h
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Dispatch.InFlightTTLSeconds <= 0 {
		cfg.Dispatch.InFlightTTLSeconds = 300
	}
	if cfg.Dispatch.Prefetch <= 0 {
		cfg.Dispatch.Prefetch = 10
	}
	if cfg.Retention.MaxAgeHours <= 0 {
		cfg.Retention.MaxAgeHours = 7 * 24
	}
	if cfg.Retention.IntervalHours <= 0 {
		cfg.Retention.IntervalHours = 24
	}
	if cfg.Outbox.IntervalMS <= 0 {
		cfg.Outbox.IntervalMS = 1000
	}
	if cfg.Outbox.BatchSize <= 0 {
		cfg.Outbox.BatchSize = 100
	}
	if cfg.Outbox.MaxRetries <= 0 {
		cfg.Outbox.MaxRetries = 5
	}
}
