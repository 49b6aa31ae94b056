package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	RedisHost     string `env:"REDIS_HOST"     envDefault:"localhost"`
	RedisPort     uint16 `env:"REDIS_PORT"     envDefault:"6379"   validate:"min=1000,max=65535"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"       envDefault:"0"      validate:"min=0,max=15"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"collab_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"collab_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"collab_db"`

	JWTSecret      string `env:"JWT_SECRET,required" validate:"min=16"`
	AuthCookieName string `env:"AUTH_COOKIE_NAME"    envDefault:"token" validate:"required"`

	// Shared secret the room-management layer presents on the force-delete endpoint.
	ControlToken string `env:"CONTROL_TOKEN"`

	RecordingRetention          time.Duration `env:"RECORDING_RETENTION"               envDefault:"1h" validate:"gt=0"`
	RecordingCancelExpiryRejoin bool          `env:"RECORDING_CANCEL_EXPIRY_ON_REJOIN" envDefault:"false"`

	ChatHistoryLimit    int           `env:"CHAT_HISTORY_LIMIT"    envDefault:"50"  validate:"min=0,max=500"`
	CanvasFlushInterval time.Duration `env:"CANVAS_FLUSH_INTERVAL" envDefault:"10s" validate:"gt=0"`

	WsMessagesPerSecond float64 `env:"WS_MESSAGES_PER_SECOND" envDefault:"120"    validate:"gt=0"`
	WsBurst             int     `env:"WS_BURST"               envDefault:"240"    validate:"min=1"`
	WsReadLimit         int64   `env:"WS_READ_LIMIT"          envDefault:"1048576" validate:"min=512"`

	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}
	return parse()
}

func parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
