package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	World    WorldConfig    `mapstructure:"world"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type RedisConfig struct {
	Addr        string `mapstructure:"addr"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	SnapshotKey string `mapstructure:"snapshot_key"`
}

type DatabaseConfig struct {
	// Driver selects the record store: "gorm", "postgres" (raw lib/pq) or
	// "memory" (seeded demo store).
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type WorldConfig struct {
	// InterestRadius is the distance cutoff beyond which move updates are not
	// forwarded to a room member.
	InterestRadius    float64       `mapstructure:"interest_radius"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_address", ":8080")
	viper.SetDefault("server.rpc_address", ":8081")
	viper.SetDefault("server.metrics_address", ":9100")
	viper.SetDefault("redis.snapshot_key", "presence-snapshot")
	viper.SetDefault("database.driver", "gorm")
	viper.SetDefault("world.interest_radius", 500.0)
	viper.SetDefault("world.reconcile_interval", 10*time.Second)

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	err = config.Validate()
	return
}

// Validate reports fatal configuration errors. Missing bus credentials must
// stop the process at startup, never during steady-state operation.
func (c *Config) Validate() error {
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address not provided")
	}
	if c.Database.Driver != "gorm" && c.Database.Driver != "postgres" && c.Database.Driver != "memory" {
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.World.InterestRadius <= 0 {
		return fmt.Errorf("interest radius must be positive")
	}
	if c.World.ReconcileInterval <= 0 {
		return fmt.Errorf("reconcile interval must be positive")
	}
	return nil
}
