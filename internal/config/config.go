package config

import (
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Queue    QueueConfig
	Storage  StorageConfig
	Usage    UsageConfig
	Metrics  MetricsConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
	OpsPort        string
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxConcurrentTx int
}

// DSN returns a postgres URL for drivers that prefer one.
func (c DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

type CacheConfig struct {
	Enabled         bool
	RedisURL        string
	RedisHost       string
	RedisPort       string
	RedisPassword   string
	RedisDB         int
	UsageTTLSeconds int
}

type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
	RecalcCron    string
	LockTTL       time.Duration
}

type StorageConfig struct {
	Enabled      bool
	Endpoint     string
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	UseSSL       bool
	ReportPrefix string
}

// UsageConfig holds engine-wide defaults. Client settings override the
// policy fields per client.
type UsageConfig struct {
	TierScheme       string
	WorkerCount      int
	LeadTimeDays     int
	SafetyStockWeeks float64
	ServiceLevel     float64
	TargetWeeks      float64
	LeadWeeks        float64
}

type MetricsConfig struct {
	Namespace string
}

type LogConfig struct {
	Level  string
	Format string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults()
		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: splitList(viper.GetStringSlice("SERVER_ALLOWED_ORIGINS")),
				OpsPort:        viper.GetString("WORKER_OPS_PORT"),
			},
			Database: DatabaseConfig{
				Host:            viper.GetString("DB_HOST"),
				Port:            viper.GetString("DB_PORT"),
				User:            viper.GetString("DB_USER"),
				Password:        viper.GetString("DB_PASSWORD"),
				DBName:          viper.GetString("DB_NAME"),
				SSLMode:         viper.GetString("DB_SSLMODE"),
				MaxOpenConns:    viper.GetInt("DB_MAX_OPEN_CONNS"),
				MaxConcurrentTx: viper.GetInt("DB_MAX_CONCURRENT_TX"),
			},
			Cache: CacheConfig{
				Enabled:         viper.GetBool("CACHE_ENABLED"),
				RedisURL:        viper.GetString("REDIS_URL"),
				RedisHost:       viper.GetString("REDIS_HOST"),
				RedisPort:       viper.GetString("REDIS_PORT"),
				RedisPassword:   viper.GetString("REDIS_PASSWORD"),
				RedisDB:         viper.GetInt("REDIS_DB"),
				UsageTTLSeconds: viper.GetInt("CACHE_USAGE_TTL_SECONDS"),
			},
			Queue: QueueConfig{
				RedisAddr:     viper.GetString("QUEUE_REDIS_ADDR"),
				RedisPassword: viper.GetString("QUEUE_REDIS_PASSWORD"),
				RedisDB:       viper.GetInt("QUEUE_REDIS_DB"),
				Concurrency:   viper.GetInt("QUEUE_CONCURRENCY"),
				RecalcCron:    viper.GetString("QUEUE_RECALC_CRON"),
				LockTTL:       time.Duration(viper.GetInt("QUEUE_LOCK_TTL_SECONDS")) * time.Second,
			},
			Storage: StorageConfig{
				Enabled:      viper.GetBool("STORAGE_ENABLED"),
				Endpoint:     viper.GetString("STORAGE_ENDPOINT"),
				AccessKey:    viper.GetString("STORAGE_ACCESS_KEY"),
				SecretKey:    viper.GetString("STORAGE_SECRET_KEY"),
				Bucket:       viper.GetString("STORAGE_BUCKET"),
				Region:       viper.GetString("STORAGE_REGION"),
				UseSSL:       viper.GetBool("STORAGE_USE_SSL"),
				ReportPrefix: viper.GetString("STORAGE_REPORT_PREFIX"),
			},
			Usage: UsageConfig{
				TierScheme:       viper.GetString("USAGE_TIER_SCHEME"),
				WorkerCount:      viper.GetInt("USAGE_WORKER_COUNT"),
				LeadTimeDays:     viper.GetInt("USAGE_DEFAULT_LEAD_TIME_DAYS"),
				SafetyStockWeeks: viper.GetFloat64("USAGE_DEFAULT_SAFETY_STOCK_WEEKS"),
				ServiceLevel:     viper.GetFloat64("USAGE_DEFAULT_SERVICE_LEVEL"),
				TargetWeeks:      viper.GetFloat64("USAGE_TARGET_WEEKS"),
				LeadWeeks:        viper.GetFloat64("USAGE_LEAD_WEEKS"),
			},
			Metrics: MetricsConfig{
				Namespace: viper.GetString("METRICS_NAMESPACE"),
			},
			Log: LogConfig{
				Level:  viper.GetString("LOG_LEVEL"),
				Format: viper.GetString("LOG_FORMAT"),
			},
		}
	})

	return instance
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_MODE", "debug")
	viper.SetDefault("SERVER_READ_TIMEOUT", 15)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 15)
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	viper.SetDefault("WORKER_OPS_PORT", "9090")

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "fulfillment")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_CONCURRENT_TX", 10)

	viper.SetDefault("CACHE_ENABLED", false)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("REDIS_HOST", "127.0.0.1")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CACHE_USAGE_TTL_SECONDS", 300)

	viper.SetDefault("QUEUE_REDIS_ADDR", "127.0.0.1:6379")
	viper.SetDefault("QUEUE_REDIS_DB", 1)
	viper.SetDefault("QUEUE_CONCURRENCY", 4)
	viper.SetDefault("QUEUE_RECALC_CRON", "0 2 * * *")
	viper.SetDefault("QUEUE_LOCK_TTL_SECONDS", 900)

	viper.SetDefault("STORAGE_ENABLED", false)
	viper.SetDefault("STORAGE_REGION", "us-east-1")
	viper.SetDefault("STORAGE_USE_SSL", true)
	viper.SetDefault("STORAGE_REPORT_PREFIX", "recalculation-reports")

	viper.SetDefault("USAGE_TIER_SCHEME", "classic")
	viper.SetDefault("USAGE_WORKER_COUNT", 4)
	viper.SetDefault("USAGE_DEFAULT_LEAD_TIME_DAYS", 14)
	viper.SetDefault("USAGE_DEFAULT_SAFETY_STOCK_WEEKS", 2.0)
	viper.SetDefault("USAGE_DEFAULT_SERVICE_LEVEL", 0.95)
	viper.SetDefault("USAGE_TARGET_WEEKS", 8.0)
	viper.SetDefault("USAGE_LEAD_WEEKS", 2.0)

	viper.SetDefault("METRICS_NAMESPACE", "fulfillment")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "console")
}

// splitList accepts both a real list and a single comma separated value,
// which is how list env vars arrive.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
