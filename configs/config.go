package configs

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ecomstream/transaction-processor/pkg/utils"
)

type Config struct {
	Port          string `mapstructure:"PORT" validate:"required"`
	StoreBackend  string `mapstructure:"STORE_BACKEND" validate:"oneof=redis memory"`
	RedisAddr     string `mapstructure:"REDIS_ADDR" validate:"required"`
	RedisUsername string `mapstructure:"REDIS_USERNAME"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisUseTLS   bool   `mapstructure:"REDIS_USE_TLS"`
	AcceptedDB    int    `mapstructure:"ACCEPTED_DB" validate:"min=0,max=15"`
	RejectedDB    int    `mapstructure:"REJECTED_DB" validate:"min=0,max=15"`
	UploadRate    int    `mapstructure:"UPLOAD_RATE" validate:"min=0"`
	UploadBurst   int    `mapstructure:"UPLOAD_BURST" validate:"min=0"`
	ConnectRetry  int    `mapstructure:"CONNECT_RETRY" validate:"min=0"`
}

func Load(logger *zap.Logger) (*Config, error) {
	viper.SetEnvPrefix("app") // Prefix for env vars
	viper.AutomaticEnv()

	// Default values
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("STORE_BACKEND", "redis")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("ACCEPTED_DB", "0")
	viper.SetDefault("REJECTED_DB", "1")
	viper.SetDefault("UPLOAD_RATE", "0")
	viper.SetDefault("UPLOAD_BURST", "0")
	viper.SetDefault("CONNECT_RETRY", "5")

	// Optional: Read from config.yaml if exists
	if gin.ReleaseMode == gin.Mode() {
		viper.SetConfigName("config.prod")
	} else if gin.TestMode == gin.Mode() {
		logger.Warn("running in test mode")
		viper.SetConfigName("config.test")
	} else {
		logger.Warn("running in development mode")
		viper.SetConfigName("config.dev")
	}
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	_ = viper.ReadInConfig() // Ignore if no file

	var cfg Config
	if err := utils.ParseStructEnv(&cfg); err != nil {
		return nil, err
	}
	// Validate after unmarshal
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, err
	}
	// Each partition needs its own logical DB, otherwise a clear of one
	// partition would wipe the other.
	if cfg.StoreBackend == "redis" && cfg.AcceptedDB == cfg.RejectedDB {
		return nil, fmt.Errorf("ACCEPTED_DB and REJECTED_DB must differ, both are %d", cfg.AcceptedDB)
	}
	return &cfg, nil
}
