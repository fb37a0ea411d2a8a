package config

import "time"

type TasknodeConfig struct {
	LogLevel  string      `json:"logLevel" mapstructure:"logLevel"`
	LogFormat string      `json:"logFormat" mapstructure:"logFormat"`
	Api       *ApiConfig  `json:"api" mapstructure:"api"`
	Db        *DbConfig   `json:"db" mapstructure:"db"`
	Auth      *AuthConfig `json:"auth" mapstructure:"auth"`
}

type ApiConfig struct {
	Address string `json:"address" mapstructure:"address"`
}

type DbConfig struct {
	Mode     string          `json:"mode" mapstructure:"mode"`
	Postgres *PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host         string `json:"host" mapstructure:"host"`
	Port         int    `json:"port" mapstructure:"port"`
	Name         string `json:"name" mapstructure:"name"`
	User         string `json:"user" mapstructure:"user"`
	Password     string `json:"password" mapstructure:"password"`
	SslMode      string `json:"sslMode" mapstructure:"sslMode"`
	MaxIdleConns int    `json:"maxIdleConns" mapstructure:"maxIdleConns"`
	MaxOpenConns int    `json:"maxOpenConns" mapstructure:"maxOpenConns"`
}

type AuthConfig struct {
	CacheExpiry time.Duration `json:"cacheExpiry" mapstructure:"cacheExpiry"`
}

func getDefaultConfig() *TasknodeConfig {
	return &TasknodeConfig{
		LogLevel:  "INFO",
		LogFormat: "text",
		Api: &ApiConfig{
			Address: "localhost:8080",
		},
		Db: &DbConfig{
			Mode: "postgres",
			Postgres: &PostgresConfig{
				Host:         "localhost",
				Port:         5432,
				Name:         "tasknode",
				User:         "postfiat",
				Password:     "postfiat",
				SslMode:      "disable",
				MaxIdleConns: 10,
				MaxOpenConns: 80,
			},
		},
		Auth: &AuthConfig{
			CacheExpiry: 5 * time.Minute,
		},
	}
}
