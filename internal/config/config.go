package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultListenAddr    = ":3000"
	DefaultForumTitle    = "Flarum"
	DefaultCookieName    = "flarum_session"
	DefaultCookieMaxAge  = 7 * 24 * time.Hour
	DefaultAttemptWindow = 15 * time.Minute
	DefaultTablePrefix   = "flarum_"
)

var DefaultSocialProviders = []string{"github"}

type MySQLConfig struct {
	Dsn             string        `mapstructure:"dsn"`
	TablePrefix     string        `mapstructure:"tablePrefix"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	ConnMaxIdleTime time.Duration `mapstructure:"connMaxIdleTime"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}

type SessionConfig struct {
	SessionMaxAge  time.Duration `mapstructure:"sessionMaxAge"`
	CookieName     string        `mapstructure:"cookieName"`
	CookieHttpOnly bool          `mapstructure:"cookieHttpOnly"`
	CookieSecure   bool          `mapstructure:"cookieSecure"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	TLS      bool   `mapstructure:"tls"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
	CAFile   string `mapstructure:"caFile"`
}

type MailConfig struct {
	// Backend is "smtp" or "log". Empty means "log".
	Backend string     `mapstructure:"backend"`
	From    string     `mapstructure:"from"`
	SMTP    SMTPConfig `mapstructure:"smtp"`
}

// RedisConfig selects the shared store. An empty URL keeps everything in process memory.
type RedisConfig struct {
	URL         string `mapstructure:"url"`
	PoolSize    int    `mapstructure:"poolSize"`
	ClusterMode bool   `mapstructure:"clusterMode"`
}

type SupabaseConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
	Issuer    string `mapstructure:"issuer"`
	Audience  string `mapstructure:"audience"`
	// URL and ServiceRoleKey enable the admin API used for provider
	// disconnects and user sync. Both are optional.
	URL             string   `mapstructure:"url"`
	ServiceRoleKey  string   `mapstructure:"serviceRoleKey"`
	SocialProviders []string `mapstructure:"socialProviders"`
}

// ForumConfig points at the forum backend that receives gated /api traffic.
type ForumConfig struct {
	UpstreamURL string `mapstructure:"upstreamURL"`
}

type TwoFactorConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Required          bool          `mapstructure:"required"`
	MaxFailedAttempts int           `mapstructure:"maxFailedAttempts"`
	AttemptWindow     time.Duration `mapstructure:"attemptWindow"`
}

type Config struct {
	Debug        bool            `mapstructure:"debug"`
	ForumTitle   string          `mapstructure:"forumTitle"`
	BaseURL      string          `mapstructure:"baseURL"`
	ListenAddr   string          `mapstructure:"listenAddr"`
	TemplateDir  string          `mapstructure:"templateDir"`
	AllowOrigins []string        `mapstructure:"allowOrigins"`
	Forum        ForumConfig     `mapstructure:"forum"`
	Redis        RedisConfig     `mapstructure:"redis"`
	Session      SessionConfig   `mapstructure:"session"`
	Mail         MailConfig      `mapstructure:"mail"`
	MySQL        MySQLConfig     `mapstructure:"mysql"`
	Supabase     SupabaseConfig  `mapstructure:"supabase"`
	TwoFactor    TwoFactorConfig `mapstructure:"twoFactor"`
}

func (c *Config) Sanitize() error {
	if c.Supabase.JWTSecret == "" {
		return errors.New("supabase.jwtSecret is required")
	}
	if c.MySQL.Dsn == "" {
		return errors.New("mysql.dsn is required")
	}
	if c.TwoFactor.MaxFailedAttempts < 0 {
		return errors.New("twoFactor.maxFailedAttempts must not be negative")
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.ForumTitle == "" {
		c.ForumTitle = DefaultForumTitle
	}
	if c.MySQL.TablePrefix == "" {
		c.MySQL.TablePrefix = DefaultTablePrefix
	}
	if c.Session.SessionMaxAge == 0 {
		c.Session.SessionMaxAge = DefaultCookieMaxAge
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = DefaultCookieName
	}
	if c.Mail.Backend == "" {
		c.Mail.Backend = "log"
	}
	if c.Supabase.ServiceRoleKey != "" && c.Supabase.URL == "" {
		return errors.New("supabase.url is required with supabase.serviceRoleKey")
	}
	if len(c.Supabase.SocialProviders) == 0 {
		c.Supabase.SocialProviders = DefaultSocialProviders
	}
	if c.TwoFactor.AttemptWindow == 0 {
		c.TwoFactor.AttemptWindow = DefaultAttemptWindow
	}
	return nil
}

func LoadConfig(filename string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filename)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}
