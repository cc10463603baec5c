package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	WsURL         string `env:"WS_URL"         envDefault:"ws://localhost:8080/ws-stomp" validate:"required,url"`
	StompHost     string `env:"STOMP_HOST"     envDefault:"/"`
	StompLogin    string `env:"STOMP_LOGIN"`
	StompPasscode string `env:"STOMP_PASSCODE"`
	AuthToken     string `env:"AUTH_TOKEN"`
	Username      string `env:"USERNAME"`

	HeartbeatOutgoing time.Duration `env:"HEARTBEAT_OUTGOING"  envDefault:"4s"  validate:"min=0"`
	HeartbeatIncoming time.Duration `env:"HEARTBEAT_INCOMING"  envDefault:"4s"  validate:"min=0"`
	ReconnectDelay    time.Duration `env:"RECONNECT_DELAY"     envDefault:"5s"  validate:"gt=0"`
	ReconnectMaxDelay time.Duration `env:"RECONNECT_MAX_DELAY" envDefault:"5s"  validate:"gtefield=ReconnectDelay"`
	DialTimeout       time.Duration `env:"DIAL_TIMEOUT"        envDefault:"10s" validate:"gt=0"`

	RollAnimationTimeout time.Duration `env:"ROLL_ANIMATION_TIMEOUT" envDefault:"3s" validate:"gt=0"`
	ChatHistory          int           `env:"CHAT_HISTORY"           envDefault:"100" validate:"min=1,max=10000"`

	TopicPrefix string `env:"TOPIC_PREFIX" envDefault:"/topic"      validate:"startswith=/"`
	AppPrefix   string `env:"APP_PREFIX"   envDefault:"/app"        validate:"startswith=/"`
	UserPrefix  string `env:"USER_PREFIX"  envDefault:"/user/queue" validate:"startswith=/"`

	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`

	RedisMirrorEnabled bool   `env:"REDIS_MIRROR_ENABLED" envDefault:"false"`
	RedisHost          string `env:"REDIS_HOST"           envDefault:"localhost"`
	RedisPort          uint16 `env:"REDIS_PORT"           envDefault:"6379" validate:"min=1000,max=65535"`

	PostgresArchiveEnabled bool   `env:"POSTGRES_ARCHIVE_ENABLED" envDefault:"false"`
	PostgresHost           string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort           string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser           string `env:"POSTGRES_USER"     envDefault:"quiz_user"`
	PostgresPassword       string `env:"POSTGRES_PASSWORD" envDefault:"quiz_password"`
	PostgresDb             string `env:"POSTGRES_DB"       envDefault:"quiz_db"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	if err = cfg.Validate(); err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}

// Validate is split out so flag overrides can be re-checked.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
