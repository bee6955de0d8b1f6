package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Feed         FeedConfig         `mapstructure:"feed"`
	Redis        RedisConfig        `mapstructure:"redis"`
	MySQL        MySQLConfig        `mapstructure:"mysql"`
	Leader       LeaderConfig       `mapstructure:"leader"`
	Instance     InstanceConfig     `mapstructure:"instance"`
	Collaborator CollaboratorConfig `mapstructure:"collaborator"`
	Sweep        SweepConfig        `mapstructure:"sweep"`
	Bus          BusConfig          `mapstructure:"bus"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// FeedConfig is the websocket live-feed listener.
type FeedConfig struct {
	Port int `mapstructure:"port"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type LeaderConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

type CollaboratorConfig struct {
	ItemServiceURL string        `mapstructure:"item_service_url"`
	UserServiceURL string        `mapstructure:"user_service_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type SweepConfig struct {
	PrewarmInterval  time.Duration `mapstructure:"prewarm_interval"`
	FinalizeInterval time.Duration `mapstructure:"finalize_interval"`
	PrewarmWindow    time.Duration `mapstructure:"prewarm_window"`
}

type BusConfig struct {
	PublishAttempts int           `mapstructure:"publish_attempts"`
	PublishDelay    time.Duration `mapstructure:"publish_delay"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.port", 8084)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("feed.port", 8094)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/auction_db?parseTime=true")
	viper.SetDefault("mysql.max_open_conns", 25)
	viper.SetDefault("mysql.max_idle_conns", 10)
	viper.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("leader.ttl", 30*time.Second)
	viper.SetDefault("instance.id", "auction-service-1")
	viper.SetDefault("collaborator.item_service_url", "http://localhost:8082")
	viper.SetDefault("collaborator.user_service_url", "http://localhost:8081")
	viper.SetDefault("collaborator.timeout", 5*time.Second)
	viper.SetDefault("sweep.prewarm_interval", time.Hour)
	viper.SetDefault("sweep.finalize_interval", 2*time.Minute)
	viper.SetDefault("sweep.prewarm_window", time.Hour)
	viper.SetDefault("bus.publish_attempts", 3)
	viper.SetDefault("bus.publish_delay", 5*time.Second)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/auction-system/")

	viper.AutomaticEnv()

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("feed.port", "FEED_PORT")
	viper.BindEnv("redis.address", "REDIS_ADDRESS")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("mysql.dsn", "MYSQL_DSN")
	viper.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	viper.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	viper.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	viper.BindEnv("leader.ttl", "LEADER_TTL")
	viper.BindEnv("instance.id", "INSTANCE_ID")
	viper.BindEnv("collaborator.item_service_url", "ITEM_SERVICE_URL")
	viper.BindEnv("collaborator.user_service_url", "USER_SERVICE_URL")
	viper.BindEnv("collaborator.timeout", "COLLABORATOR_TIMEOUT")
	viper.BindEnv("sweep.prewarm_interval", "SWEEP_PREWARM_INTERVAL")
	viper.BindEnv("sweep.finalize_interval", "SWEEP_FINALIZE_INTERVAL")
	viper.BindEnv("sweep.prewarm_window", "SWEEP_PREWARM_WINDOW")
	viper.BindEnv("bus.publish_attempts", "BUS_PUBLISH_ATTEMPTS")
	viper.BindEnv("bus.publish_delay", "BUS_PUBLISH_DELAY")

	// Config file is optional, defaults and env vars are enough to run.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Feed: %d, Redis: %s, MySQL: %s, Instance: %s",
		c.Server.Host,
		c.Server.Port,
		c.Feed.Port,
		c.Redis.Address,
		c.MySQL.DSN,
		c.Instance.ID,
	)
}
