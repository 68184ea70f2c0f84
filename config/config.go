package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	Environment string
	Name        string
	Version     string
	HTTP        HTTPConfig
	Postgres    PostgresConfig
	JWT         JWTConfig
	S3          S3Config
	Chat        ChatConfig
}

type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxHeaderMB  int
}

type PostgresConfig struct {
	Host               string
	Port               string
	Username           string
	Password           string
	DBName             string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
	MaxLifetime        time.Duration
}

type JWTConfig struct {
	SigningKey      string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
}

// WaitTimeoutAction determines what happens to a session whose queue wait
// exceeds ChatConfig.MaxWaitTime: "escalate" keeps it queued with elevated
// handling, "timeout" terminates it.
type WaitTimeoutAction string

const (
	WaitTimeoutEscalate WaitTimeoutAction = "escalate"
	WaitTimeoutTimeout  WaitTimeoutAction = "timeout"
)

type ChatConfig struct {
	DefaultClinicID   string
	DefaultMaxChats   int
	MaxWaitTime       time.Duration
	WaitTimeoutAction WaitTimeoutAction
	AutoAssignEnabled bool
	QueueEnabled      bool
	EscalationEnabled bool
	GreetingMessage   string
	OfflineMessage    string
	WorkingHoursStart string
	WorkingHoursEnd   string
	Timezone          string
}

func NewConfig() (*Config, error) {
	httpReadTimeout, err := time.ParseDuration(getEnv("HTTP_READ_TIMEOUT", "10s"))
	if err != nil {
		return nil, err
	}

	httpWriteTimeout, err := time.ParseDuration(getEnv("HTTP_WRITE_TIMEOUT", "10s"))
	if err != nil {
		return nil, err
	}

	postgresMaxLifetime, err := time.ParseDuration(getEnv("POSTGRES_MAX_LIFETIME", "5m"))
	if err != nil {
		return nil, err
	}

	jwtAccessTokenTTL, err := time.ParseDuration(getEnv("JWT_ACCESS_TOKEN_TTL", "15m"))
	if err != nil {
		return nil, err
	}

	jwtRefreshTokenTTL, err := time.ParseDuration(getEnv("JWT_REFRESH_TOKEN_TTL", "24h"))
	if err != nil {
		return nil, err
	}

	maxWaitTime, err := time.ParseDuration(getEnv("CHAT_MAX_WAIT_TIME", "10m"))
	if err != nil {
		return nil, err
	}

	waitAction := WaitTimeoutAction(getEnv("CHAT_WAIT_TIMEOUT_ACTION", "escalate"))
	if waitAction != WaitTimeoutEscalate && waitAction != WaitTimeoutTimeout {
		return nil, fmt.Errorf("неизвестное значение CHAT_WAIT_TIMEOUT_ACTION: %s", waitAction)
	}

	return &Config{
		Environment: getEnv("APP_ENV", "development"),
		Name:        getEnv("APP_NAME", "clinichat"),
		Version:     getEnv("APP_VERSION", "1.0.0"),
		HTTP: HTTPConfig{
			Port:         getEnv("HTTP_PORT", "8080"),
			ReadTimeout:  httpReadTimeout,
			WriteTimeout: httpWriteTimeout,
			MaxHeaderMB:  getEnvAsInt("HTTP_MAX_HEADER_MB", 1),
		},
		Postgres: PostgresConfig{
			Host:               getEnv("POSTGRES_HOST", "localhost"),
			Port:               getEnv("POSTGRES_PORT", "5432"),
			Username:           getEnv("POSTGRES_USER", "postgres"),
			Password:           getEnv("POSTGRES_PASSWORD", "postgres"),
			DBName:             getEnv("POSTGRES_DB", "clinichat"),
			SSLMode:            getEnv("POSTGRES_SSL_MODE", "disable"),
			MaxConnections:     getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("POSTGRES_MAX_IDLE_CONNECTIONS", 5),
			MaxLifetime:        postgresMaxLifetime,
		},
		JWT: JWTConfig{
			SigningKey:      getEnv("JWT_SIGNING_KEY", "your_secret_key"),
			AccessTokenTTL:  jwtAccessTokenTTL,
			RefreshTokenTTL: jwtRefreshTokenTTL,
		},
		S3: S3Config{
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			Region:          getEnv("S3_REGION", "us-east-1"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("S3_BUCKET", "clinichat"),
			UseSSL:          getEnv("S3_USE_SSL", "true") == "true",
		},
		Chat: ChatConfig{
			DefaultClinicID:   getEnv("CHAT_DEFAULT_CLINIC_ID", ""),
			DefaultMaxChats:   getEnvAsInt("CHAT_DEFAULT_MAX_CHATS", 3),
			MaxWaitTime:       maxWaitTime,
			WaitTimeoutAction: waitAction,
			AutoAssignEnabled: getEnv("CHAT_AUTO_ASSIGN", "true") == "true",
			QueueEnabled:      getEnv("CHAT_QUEUE_ENABLED", "true") == "true",
			EscalationEnabled: getEnv("CHAT_ESCALATION_ENABLED", "true") == "true",
			GreetingMessage:   getEnv("CHAT_GREETING_MESSAGE", "Здравствуйте! Оператор скоро подключится к чату."),
			OfflineMessage:    getEnv("CHAT_OFFLINE_MESSAGE", "Сейчас нерабочее время. Оставьте сообщение, и мы ответим позже."),
			WorkingHoursStart: getEnv("CHAT_WORKING_HOURS_START", "09:00"),
			WorkingHoursEnd:   getEnv("CHAT_WORKING_HOURS_END", "18:00"),
			Timezone:          getEnv("CHAT_TIMEZONE", "Europe/Moscow"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value := 0
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return defaultValue
	}

	return value
}
