package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	IP             string        `mapstructure:"ip"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

type DatabaseConfig struct {
	Host                  string        `mapstructure:"host"`
	Port                  int           `mapstructure:"port"`
	Database              string        `mapstructure:"database"`
	User                  string        `mapstructure:"user"`
	Password              string        `mapstructure:"password"`
	MaxConnections        int           `mapstructure:"max_connections"`
	MaxIdleConnections    int           `mapstructure:"max_idle_connections"`
	ConnectionMaxLifetime time.Duration `mapstructure:"connection_max_lifetime"`
}

// QueueConfig 队列服务端配置（promoter与janitor后台循环）
type QueueConfig struct {
	LockKey         string        `mapstructure:"lock_key"`
	LockTimeout     time.Duration `mapstructure:"lock_timeout"`
	PromoteInterval time.Duration `mapstructure:"promote_interval"`
	PruneInterval   time.Duration `mapstructure:"prune_interval"`
	Retention       time.Duration `mapstructure:"retention"`
	DefaultTimezone string        `mapstructure:"default_timezone"`
}

// ExecutorConfig 轮询执行器配置
type ExecutorConfig struct {
	APIBaseURL     string        `mapstructure:"api_base_url"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	OutputDir      string        `mapstructure:"output_dir"`
	MaxWorkers     int           `mapstructure:"max_workers"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 设置默认值
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.max_header_bytes", 1048576)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.max_connections", 20)
	viper.SetDefault("database.max_idle_connections", 10)
	viper.SetDefault("database.connection_max_lifetime", "1h")

	viper.SetDefault("queue.lock_key", "taskq_promoter_lock")
	viper.SetDefault("queue.lock_timeout", "10s")
	viper.SetDefault("queue.promote_interval", "15s")
	viper.SetDefault("queue.prune_interval", "1h")
	viper.SetDefault("queue.retention", "720h")
	viper.SetDefault("queue.default_timezone", "UTC")

	viper.SetDefault("executor.api_base_url", "http://localhost:8080")
	viper.SetDefault("executor.poll_interval", "30s")
	viper.SetDefault("executor.handler_timeout", "5m")
	viper.SetDefault("executor.request_timeout", "10s")
	viper.SetDefault("executor.output_dir", "output")
	viper.SetDefault("executor.max_workers", 4)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
