package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
)

var config = viper.New()

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	Server     struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Engine EngineConfig `mapstructure:"ENGINE"`
}

// EngineConfig bundles the event engine's poll cadences and thresholds.
type EngineConfig struct {
	SchedulerSpec string `mapstructure:"SCHEDULER_SPEC"`
	ExecutorSpec  string `mapstructure:"EXECUTOR_SPEC"`
	ExpirySpec    string `mapstructure:"EXPIRY_SPEC"`
	HealthSpec    string `mapstructure:"HEALTH_SPEC"`

	StalePendingAfter  time.Duration `mapstructure:"STALE_PENDING_AFTER"`
	FailedTodayMax     int           `mapstructure:"FAILED_TODAY_MAX"`
	OverdueExpiryGrace time.Duration `mapstructure:"OVERDUE_EXPIRY_GRACE"`
	RecentWindow       time.Duration `mapstructure:"RECENT_WINDOW"`
	WorkerPoolSize     int           `mapstructure:"WORKER_POOL_SIZE"`
	PassMaxRetries     int           `mapstructure:"PASS_MAX_RETRIES"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func LoadConfig() *Config {
	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	setEngineDefaults(config)

	// A config file is optional; env vars and defaults are enough to run.
	_ = config.ReadInConfig()

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

func setEngineDefaults(v *viper.Viper) {
	v.SetDefault("ENGINE.SCHEDULER_SPEC", "@every 2m")
	v.SetDefault("ENGINE.EXECUTOR_SPEC", "@every 1m")
	v.SetDefault("ENGINE.EXPIRY_SPEC", "@every 1m")
	v.SetDefault("ENGINE.HEALTH_SPEC", "@every 5m")
	v.SetDefault("ENGINE.STALE_PENDING_AFTER", time.Hour)
	v.SetDefault("ENGINE.FAILED_TODAY_MAX", 5)
	v.SetDefault("ENGINE.OVERDUE_EXPIRY_GRACE", 10*time.Minute)
	v.SetDefault("ENGINE.RECENT_WINDOW", 7*24*time.Hour)
	v.SetDefault("ENGINE.WORKER_POOL_SIZE", 8)
	v.SetDefault("ENGINE.PASS_MAX_RETRIES", 5)
	v.SetDefault("HTTP_SERVER.ADDR", ":8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("REDIS.ADDR", "127.0.0.1:6379")
}

// Defaults returns an EngineConfig populated with the stock thresholds,
// useful for constructing the engine outside the fx graph.
func Defaults() EngineConfig {
	return EngineConfig{
		SchedulerSpec:      "@every 2m",
		ExecutorSpec:       "@every 1m",
		ExpirySpec:         "@every 1m",
		HealthSpec:         "@every 5m",
		StalePendingAfter:  time.Hour,
		FailedTodayMax:     5,
		OverdueExpiryGrace: 10 * time.Minute,
		RecentWindow:       7 * 24 * time.Hour,
		WorkerPoolSize:     8,
		PassMaxRetries:     5,
	}
}
