package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Freshness FreshnessConfig `mapstructure:"freshness"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port    int        `mapstructure:"port"`
	BaseURL string     `mapstructure:"base_url"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EmptyPolicy 主连接器返回空结果且无历史基线时的处置策略
type EmptyPolicy string

const (
	// EmptyAccept 接受空结果（默认）：无基线时空结果视为有效
	EmptyAccept EmptyPolicy = "accept"
	// EmptyFallback 无基线的空结果也触发备用连接器
	EmptyFallback EmptyPolicy = "fallback"
)

// ScraperConfig 抓取后端与连接器配置
type ScraperConfig struct {
	BaseURL              string        `mapstructure:"base_url"`
	PrimaryEnabled       bool          `mapstructure:"primary_enabled"`
	FallbackEnabled      bool          `mapstructure:"fallback_enabled"`
	ShadowMode           bool          `mapstructure:"shadow_mode"` // 同时运行两条路径做信号对比，不改变返回结果
	PrimaryTimeout       time.Duration `mapstructure:"primary_timeout"`
	FallbackTimeout      time.Duration `mapstructure:"fallback_timeout"`
	PrimaryMaxRetries    int           `mapstructure:"primary_max_retries"`
	FallbackMaxRetries   int           `mapstructure:"fallback_max_retries"`
	RateLimitRPS         float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst       int           `mapstructure:"rate_limit_burst"`
	EmptyWithoutBaseline EmptyPolicy   `mapstructure:"empty_without_baseline"`
}

// BreakerOverride 单个依赖的熔断器参数覆盖（零值表示使用全局默认）
type BreakerOverride struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"`
}

// BreakerConfig 熔断器配置（全局默认 + 按依赖覆盖）
type BreakerConfig struct {
	FailureThreshold int             `mapstructure:"failure_threshold"`
	RecoveryTimeout  time.Duration   `mapstructure:"recovery_timeout"`
	Primary          BreakerOverride `mapstructure:"primary"`
	Fallback         BreakerOverride `mapstructure:"fallback"`
}

// For 返回覆盖项生效后的 (失败阈值, 恢复超时)
func (c *BreakerConfig) For(o BreakerOverride) (int, time.Duration) {
	threshold := c.FailureThreshold
	if o.FailureThreshold > 0 {
		threshold = o.FailureThreshold
	}
	recovery := c.RecoveryTimeout
	if o.RecoveryTimeout > 0 {
		recovery = o.RecoveryTimeout
	}
	return threshold, recovery
}

// CacheConfig 进程内缓存配置
type CacheConfig struct {
	MaxEntries    int           `mapstructure:"max_entries"`
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
	PopulationTTL time.Duration `mapstructure:"population_ttl"` // 填充结果短缓存
}

// FreshnessConfig 各实体类型的新鲜度 TTL
type FreshnessConfig struct {
	CourseSectionsTTL time.Duration `mapstructure:"course_sections_ttl"`
	ProfessorTTL      time.Duration `mapstructure:"professor_ttl"`
	ReviewsTTL        time.Duration `mapstructure:"reviews_ttl"`
}

// RefreshConfig 后台主动刷新配置
type RefreshConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	Concurrency int           `mapstructure:"concurrency"` // 并发外部抓取上限（信号量）
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "schedulefirst")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "America/Chicago")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)  // 60分钟
	v.SetDefault("db.conn_max_idle_time", 30) // 30分钟

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("scraper.base_url", "http://localhost:9400")
	v.SetDefault("scraper.primary_enabled", true)
	v.SetDefault("scraper.fallback_enabled", true)
	v.SetDefault("scraper.shadow_mode", false)
	v.SetDefault("scraper.primary_timeout", "45s")
	v.SetDefault("scraper.fallback_timeout", "20s")
	v.SetDefault("scraper.primary_max_retries", 1)
	v.SetDefault("scraper.fallback_max_retries", 1)
	v.SetDefault("scraper.rate_limit_rps", 2.0)
	v.SetDefault("scraper.rate_limit_burst", 4)
	v.SetDefault("scraper.empty_without_baseline", "accept")

	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.recovery_timeout", "60s")

	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("cache.default_ttl", "5m")
	v.SetDefault("cache.population_ttl", "60s")

	v.SetDefault("freshness.course_sections_ttl", "168h") // 7天
	v.SetDefault("freshness.professor_ttl", "168h")       // 7天
	v.SetDefault("freshness.reviews_ttl", "720h")         // 30天

	v.SetDefault("refresh.enabled", false)
	v.SetDefault("refresh.interval", "1h")
	v.SetDefault("refresh.concurrency", 5)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("SCHEDULE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Scraper.BaseURL == "" {
		return fmt.Errorf("配置校验失败: scraper.base_url 不能为空")
	}
	if !c.Scraper.PrimaryEnabled && !c.Scraper.FallbackEnabled {
		return fmt.Errorf("配置校验失败: 主连接器与备用连接器不能同时禁用")
	}
	switch c.Scraper.EmptyWithoutBaseline {
	case EmptyAccept, EmptyFallback:
	default:
		return fmt.Errorf("配置校验失败: scraper.empty_without_baseline 必须为 accept 或 fallback")
	}
	if c.Refresh.Concurrency <= 0 {
		return fmt.Errorf("配置校验失败: refresh.concurrency 必须大于 0")
	}
	return nil
}
