package configuration

import (
	"Chatline/internal/hub"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	defaultConfigPath = "config.json"
	configPathEnv     = "CHATLINE_CONFIG"
	envPrefix         = "CHATLINE"
)

type MongoConfig struct {
	Uri                string `mapstructure:"uri"`
	Database           string `mapstructure:"database"`
	UsersCollection    string `mapstructure:"usersCollection"`
	MessagesCollection string `mapstructure:"messagesCollection"`
	MaxPoolSize        uint64 `mapstructure:"maxPoolSize"`
}

type ServerConfig struct {
	AppPort        int      `mapstructure:"appPort"`
	SocketPort     int      `mapstructure:"socketPort"`
	SocketRoute    string   `mapstructure:"socketRoute"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
}

type HubConfig struct {
	SendBufferSize    int           `mapstructure:"sendBufferSize"`
	WorkerPoolSize    int           `mapstructure:"workerPoolSize"`
	InboundBufferSize int           `mapstructure:"inboundBufferSize"`
	WriteWait         time.Duration `mapstructure:"writeWait"`
	PongWait          time.Duration `mapstructure:"pongWait"`
	MaxMessageSize    int64         `mapstructure:"maxMessageSize"`
	StoreTimeout      time.Duration `mapstructure:"storeTimeout"`
	CloseSuperseded   bool          `mapstructure:"closeSuperseded"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type Config struct {
	Mongo  MongoConfig  `mapstructure:"mongo"`
	Server ServerConfig `mapstructure:"server"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Hub    HubConfig    `mapstructure:"hub"`
	Log    LogConfig    `mapstructure:"log"`
}

// ConfigPath returns the file named by CHATLINE_CONFIG, or config.json.
func ConfigPath() string {
	if p := os.Getenv(configPathEnv); p != "" {
		return p
	}
	return defaultConfigPath
}

// LoadConfig reads the JSON file at configPath, then applies CHATLINE_* environment
// overrides (mongo.uri -> CHATLINE_MONGO_URI). A missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	d := hub.DefaultOptions()

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "chatline")
	v.SetDefault("mongo.usersCollection", "users")
	v.SetDefault("mongo.messagesCollection", "messages")
	v.SetDefault("mongo.maxPoolSize", 100)

	v.SetDefault("server.appPort", 5000)
	v.SetDefault("server.socketPort", 5001)
	v.SetDefault("server.socketRoute", "ws")
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:3000"})

	v.SetDefault("auth.jwtSecret", "")

	v.SetDefault("hub.sendBufferSize", d.SendBufferSize)
	v.SetDefault("hub.workerPoolSize", d.WorkerPoolSize)
	v.SetDefault("hub.inboundBufferSize", d.InboundBufferSize)
	v.SetDefault("hub.writeWait", d.WriteWait)
	v.SetDefault("hub.pongWait", d.PongWait)
	v.SetDefault("hub.maxMessageSize", d.MaxMessageSize)
	v.SetDefault("hub.storeTimeout", d.StoreTimeout)
	v.SetDefault("hub.closeSuperseded", d.CloseSuperseded)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwtSecret is required"))
	}
	if c.Mongo.Uri == "" || c.Mongo.Database == "" {
		errs = append(errs, errors.New("mongo.uri and mongo.database are required"))
	}
	if c.Server.AppPort <= 0 || c.Server.SocketPort <= 0 {
		errs = append(errs, fmt.Errorf("server ports must be positive, got app=%d socket=%d", c.Server.AppPort, c.Server.SocketPort))
	}
	if c.Hub.SendBufferSize <= 0 || c.Hub.InboundBufferSize <= 0 || c.Hub.WorkerPoolSize <= 0 {
		errs = append(errs, errors.New("hub buffer sizes and worker pool size must be positive"))
	}

	return errors.Join(errs...)
}

// HubOptions maps the hub section onto hub.Options.
func (c *Config) HubOptions() hub.Options {
	return hub.Options{
		SendBufferSize:    c.Hub.SendBufferSize,
		WorkerPoolSize:    c.Hub.WorkerPoolSize,
		InboundBufferSize: c.Hub.InboundBufferSize,
		WriteWait:         c.Hub.WriteWait,
		PongWait:          c.Hub.PongWait,
		MaxMessageSize:    c.Hub.MaxMessageSize,
		StoreTimeout:      c.Hub.StoreTimeout,
		CloseSuperseded:   c.Hub.CloseSuperseded,
		AllowedOrigins:    c.Server.AllowedOrigins,
	}
}

// NewLogger builds the process logger from the log section.
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}

	if c.Level != "" {
		level, err := zap.ParseAtomicLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
		}
		zc.Level = level
	}

	return zc.Build()
}
