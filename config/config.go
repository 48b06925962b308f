package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the settings of the optional reading sinks.
// The UDP listener itself is not configurable.
type Config struct {
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Timescale TimescaleConfig `mapstructure:"timescale"`
}

// MQTTConfig holds MQTT publishing configuration
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Port     int    `mapstructure:"port"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// DatabaseConfig holds Postgres connection configuration
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// TimescaleConfig holds Timescale specific configuration
type TimescaleConfig struct {
	TableName string `mapstructure:"table_name"`
}

// envBindings maps every configuration key to its environment variable
var envBindings = map[string]string{
	"mqtt.enabled":   "MQTT_ENABLED",
	"mqtt.broker":    "MQTT_BROKER",
	"mqtt.port":      "MQTT_PORT",
	"mqtt.client_id": "MQTT_CLIENT_ID",
	"mqtt.topic":     "MQTT_TOPIC",
	"mqtt.username":  "MQTT_USERNAME",
	"mqtt.password":  "MQTT_PASSWORD",

	"database.enabled":  "DATABASE_ENABLED",
	"database.host":     "DATABASE_HOST",
	"database.port":     "DATABASE_PORT",
	"database.user":     "DATABASE_USER",
	"database.password": "DATABASE_PASSWORD",
	"database.dbname":   "DATABASE_DBNAME",
	"database.sslmode":  "DATABASE_SSLMODE",

	"timescale.table_name": "TIMESCALE_TABLE_NAME",
}

// LoadConfig loads configuration from file and/or environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Defaults have the lowest precedence
	defaultConfig := GetDefaultConfig()
	v.SetDefault("mqtt.enabled", defaultConfig.MQTT.Enabled)
	v.SetDefault("mqtt.broker", defaultConfig.MQTT.Broker)
	v.SetDefault("mqtt.port", defaultConfig.MQTT.Port)
	v.SetDefault("mqtt.client_id", defaultConfig.MQTT.ClientID)
	v.SetDefault("mqtt.topic", defaultConfig.MQTT.Topic)
	v.SetDefault("mqtt.username", defaultConfig.MQTT.Username)
	v.SetDefault("mqtt.password", defaultConfig.MQTT.Password)

	v.SetDefault("database.enabled", defaultConfig.Database.Enabled)
	v.SetDefault("database.host", defaultConfig.Database.Host)
	v.SetDefault("database.port", defaultConfig.Database.Port)
	v.SetDefault("database.user", defaultConfig.Database.User)
	v.SetDefault("database.password", defaultConfig.Database.Password)
	v.SetDefault("database.dbname", defaultConfig.Database.DBName)
	v.SetDefault("database.sslmode", defaultConfig.Database.SSLMode)

	v.SetDefault("timescale.table_name", defaultConfig.Timescale.TableName)

	// Config file has medium precedence
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Environment variables have the highest precedence, e.g. mqtt.broker -> MQTT_BROKER
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s to %s: %w", key, env, err)
		}
	}

	// A missing config file is fine, sinks just stay at their defaults
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Println("No config file found, using environment variables and defaults")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// GetDefaultConfig returns default configuration with every sink disabled
func GetDefaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Enabled:  false,
			Broker:   "localhost",
			Port:     1883,
			ClientID: "udp-sensor-receiver",
			Topic:    "sensor/nucleo/readings",
			Username: "",
			Password: "",
		},
		Database: DatabaseConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "postgres",
			DBName:   "iot_data",
			SSLMode:  "disable",
		},
		Timescale: TimescaleConfig{
			TableName: "sensor_readings",
		},
	}
}

// Validate checks the settings of every enabled sink
func (c *Config) Validate() error {
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if c.MQTT.Topic == "" {
			return fmt.Errorf("mqtt.topic is required when mqtt is enabled")
		}
	}
	if c.Database.Enabled {
		if c.Database.Host == "" || c.Database.DBName == "" {
			return fmt.Errorf("database.host and database.dbname are required when database is enabled")
		}
		if !isIdentifier(c.Timescale.TableName) {
			return fmt.Errorf("timescale.table_name %q is not a valid SQL identifier", c.Timescale.TableName)
		}
	}
	return nil
}

// isIdentifier reports whether name is safe to splice into SQL as a table name
func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// GetDBConnString returns the database connection string
func (c *Config) GetDBConnString() string {
	log.Printf("Connecting to database at 'host=%s port=%d user=%s dbname=%s sslmode=%s'",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.DBName,
		c.Database.SSLMode,
	)
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// GetMQTTBrokerURL returns the MQTT broker URL
func (c *Config) GetMQTTBrokerURL() string {
	brokerURL := c.MQTT.Broker

	// Keep mqtt schemes, only add the port if it is missing
	for _, scheme := range []string{"tcp://", "ssl://", "ws://", "wss://"} {
		if strings.HasPrefix(brokerURL, scheme) {
			if !strings.Contains(brokerURL[len(scheme):], ":") {
				brokerURL = fmt.Sprintf("%s:%d", brokerURL, c.MQTT.Port)
			}
			return brokerURL
		}
	}

	// http:// and https:// map to tcp:// and ssl://
	if strings.HasPrefix(brokerURL, "http://") {
		return "tcp://" + withPort(brokerURL[len("http://"):], c.MQTT.Port)
	}
	if strings.HasPrefix(brokerURL, "https://") {
		return "ssl://" + withPort(brokerURL[len("https://"):], c.MQTT.Port)
	}

	log.Printf("No protocol specified in broker URL '%s', defaulting to tcp://", brokerURL)
	return "tcp://" + withPort(brokerURL, c.MQTT.Port)
}

func withPort(host string, port int) string {
	if strings.Contains(host, ":") {
		return host
	}
	return fmt.Sprintf("%s:%d", host, port)
}
