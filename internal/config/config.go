package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dfinsell-next/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	minProviderTimeoutSeconds = 15
	maxProviderTimeoutSeconds = 30
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Security SecurityConfig `mapstructure:"security"`
	Provider ProviderConfig `mapstructure:"provider"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Lock     LockConfig     `mapstructure:"lock"`
	Order    OrderConfig    `mapstructure:"order"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Captcha  CaptchaConfig  `mapstructure:"captcha"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	SecretKey   string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	CheckoutRateLimit RateLimitConfig `mapstructure:"checkout_rate_limit"`
	LoginRateLimit    RateLimitConfig `mapstructure:"login_rate_limit"`

	// HookSecret 电商系统调用钩子时携带的共享密钥，为空时钩子一律拒绝
	HookSecret string `mapstructure:"hook_secret"`
}

// RateLimitConfig 滑动窗口限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// ProviderConfig 支付网关接口配置
type ProviderConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	SiteURL        string `mapstructure:"site_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	ReturnPath     string `mapstructure:"return_path"`
	OrderPath      string `mapstructure:"order_received_path"`
}

// Timeout 返回限定在 15~30 秒内的请求超时
func (c ProviderConfig) Timeout() time.Duration {
	seconds := c.TimeoutSeconds
	if seconds < minProviderTimeoutSeconds {
		seconds = minProviderTimeoutSeconds
	}
	if seconds > maxProviderTimeoutSeconds {
		seconds = maxProviderTimeoutSeconds
	}
	return time.Duration(seconds) * time.Second
}

// GatewayConfig 网关默认设置（数据库设置缺失时使用）
type GatewayConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	Sandbox             bool   `mapstructure:"sandbox"`
	OrderStatus         string `mapstructure:"order_status"`
	ShowConsentCheckbox bool   `mapstructure:"show_consent_checkbox"`
	Title               string `mapstructure:"title"`
	Description         string `mapstructure:"description"`
	AdminLoginCaptcha   bool   `mapstructure:"admin_login_captcha"`
}

// LockConfig 账户锁配置
type LockConfig struct {
	Driver     string `mapstructure:"driver"` // redis / database
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// TTL 锁过期时间
func (c LockConfig) TTL() time.Duration {
	if c.TTLSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TTLSeconds) * time.Second
}

// OrderConfig 订单配置
type OrderConfig struct {
	UnpaidExpireMinutes int `mapstructure:"unpaid_expire_minutes"`
}

// UnpaidThreshold 未支付订单取消阈值
func (c OrderConfig) UnpaidThreshold() time.Duration {
	if c.UnpaidExpireMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.UnpaidExpireMinutes) * time.Minute
}

// SyncConfig 账户状态同步配置
type SyncConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes"`
}

// Interval 同步周期
func (c SyncConfig) Interval() time.Duration {
	if c.IntervalMinutes <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// CaptchaConfig 验证码配置
type CaptchaConfig struct {
	Image CaptchaImageConfig `mapstructure:"image"`
}

// CaptchaImageConfig 图片验证码配置
type CaptchaImageConfig struct {
	Length        int `mapstructure:"length"`
	Width         int `mapstructure:"width"`
	Height        int `mapstructure:"height"`
	NoiseCount    int `mapstructure:"noise_count"`
	ShowLine      int `mapstructure:"show_line"`
	ExpireSeconds int `mapstructure:"expire_seconds"`
	MaxStore      int `mapstructure:"max_store"`
}

// Load 从 .env 与 config.yml 加载配置
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		logger.Infow("config_dotenv_loaded")
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")     // 从当前目录查找
	viper.AddConfigPath("../")   // 如果从 cmd/server 运行
	viper.AddConfigPath("./etc") // etc 文件夹

	setDefaults(viper.GetViper())

	// 环境变量支持（例如 provider.base_url -> PROVIDER_BASE_URL）
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "dfinsell.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/dfinsell.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "dfs")
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Authorization",
		"X-Requested-With",
		"X-WP-Nonce",
	})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("security.checkout_rate_limit.window_seconds", 60)
	v.SetDefault("security.checkout_rate_limit.max_requests", 5)
	v.SetDefault("security.login_rate_limit.window_seconds", 300)
	v.SetDefault("security.login_rate_limit.max_requests", 5)
	v.SetDefault("security.hook_secret", "")
	v.SetDefault("provider.base_url", "https://api.dfinsell.com")
	v.SetDefault("provider.site_url", "http://localhost:8080")
	v.SetDefault("provider.timeout_seconds", 20)
	v.SetDefault("provider.return_path", "/dfinsell/v1/return")
	v.SetDefault("provider.order_received_path", "/checkout/order-received")
	v.SetDefault("gateway.enabled", true)
	v.SetDefault("gateway.sandbox", false)
	v.SetDefault("gateway.order_status", "processing")
	v.SetDefault("gateway.show_consent_checkbox", false)
	v.SetDefault("gateway.title", "DFin Sell Payment Gateway")
	v.SetDefault("gateway.description", "Secure payments with DFin Sell")
	v.SetDefault("gateway.admin_login_captcha", false)
	v.SetDefault("lock.driver", "redis")
	v.SetDefault("lock.ttl_seconds", 10)
	v.SetDefault("order.unpaid_expire_minutes", 30)
	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.interval_minutes", 120)
	v.SetDefault("captcha.image.length", 5)
	v.SetDefault("captcha.image.width", 240)
	v.SetDefault("captcha.image.height", 80)
	v.SetDefault("captcha.image.noise_count", 2)
	v.SetDefault("captcha.image.show_line", 2)
	v.SetDefault("captcha.image.expire_seconds", 300)
	v.SetDefault("captcha.image.max_store", 10240)
}
