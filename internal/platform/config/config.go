package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Hostnames HostnamesConfig `mapstructure:"hostnames"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Recorder  RecorderConfig  `mapstructure:"recorder"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	GeoIP     GeoIPConfig     `mapstructure:"geoip"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// HostnamesConfig is the static hostname classification data, loaded once at
// process start. Any hostname outside the three sets is treated as a link domain.
type HostnamesConfig struct {
	App         []string `mapstructure:"app"`
	API         []string `mapstructure:"api"`
	Admin       []string `mapstructure:"admin"`
	ShortDomain string   `mapstructure:"short_domain"`
	AppURL      string   `mapstructure:"app_url"`
	HomeURL     string   `mapstructure:"home_url"`
}

type RedisConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	Path           string        `mapstructure:"path"`
	MaxConnections int           `mapstructure:"max_connections"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
}

type CacheConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type RecorderConfig struct {
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue_size"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`
}

type RateLimitConfig struct {
	CreateLinkPerMinute int `mapstructure:"create_link_per_minute"`
}

type GeoIPConfig struct {
	Headers        []string `mapstructure:"headers"`
	DefaultCountry string   `mapstructure:"default_country"`
}

type WorkerConfig struct {
	StatsInterval time.Duration `mapstructure:"stats_interval"`
	StatsLookback int           `mapstructure:"stats_lookback_days"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	applyDefaults(&config)
	return &config, nil
}

func applyDefaults(c *Config) {
	if c.Cache.Timeout == 0 {
		c.Cache.Timeout = 100 * time.Millisecond
	}
	if c.Database.QueryTimeout == 0 {
		c.Database.QueryTimeout = 2 * time.Second
	}
	if c.Recorder.Workers == 0 {
		c.Recorder.Workers = 4
	}
	if c.Recorder.QueueSize == 0 {
		c.Recorder.QueueSize = 4096
	}
	if c.Recorder.WriteTimeout == 0 {
		c.Recorder.WriteTimeout = 5 * time.Second
	}
	if c.Recorder.DrainTimeout == 0 {
		c.Recorder.DrainTimeout = 10 * time.Second
	}
	if c.RateLimit.CreateLinkPerMinute == 0 {
		c.RateLimit.CreateLinkPerMinute = 60
	}
	if len(c.GeoIP.Headers) == 0 {
		c.GeoIP.Headers = []string{"CF-IPCountry", "X-Vercel-IP-Country"}
	}
	if c.Worker.StatsInterval == 0 {
		c.Worker.StatsInterval = time.Hour
	}
	if c.Worker.StatsLookback == 0 {
		c.Worker.StatsLookback = 2
	}
}
