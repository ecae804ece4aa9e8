package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Astemirdum/library-desk/pkg/auth"
	"github.com/Astemirdum/library-desk/pkg/kafka"
	"github.com/Astemirdum/library-desk/pkg/logger"
	"github.com/Astemirdum/library-desk/pkg/postgres"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"HTTP_HOST" default:"0.0.0.0"`
	Port         string        `yaml:"port" envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ" default:"15s"`
	WriteTimeout time.Duration `yaml:"writeTimeout" envconfig:"HTTP_WRITE"`
}

type Media struct {
	Dir           string `yaml:"dir" envconfig:"MEDIA_DIR" default:"media"`
	MaxUploadSize int64  `yaml:"maxUploadSize" envconfig:"MEDIA_MAX_UPLOAD" default:"5242880"`
}

type Config struct {
	Server   HTTPServer   `yaml:"server"`
	Database postgres.DB  `yaml:"db"`
	Log      logger.Log   `yaml:"log"`
	Kafka    kafka.Config `yaml:"kafka"`
	Session  auth.Config  `yaml:"session"`
	Media    Media        `yaml:"media"`
}

var (
	once sync.Once
	cfg  *Config
)

// NewConfig reads config from environment.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		err := envconfig.Process("", &config)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = &config
		if config.Log.LogLevel == zapcore.DebugLevel {
			printConfig(cfg)
		}
	})

	return cfg
}

func printConfig(cfg *Config) {
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}
