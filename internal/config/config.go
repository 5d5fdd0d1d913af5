package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Modos de tratamento de entrada do estimador
const (
	InputModeLenient = "lenient"
	InputModeStrict  = "strict"
)

// Modos de resolução da identidade do usuário
const (
	IdentityModeSession = "session"
	IdentityModeHeader  = "header"
)

// Drivers de banco suportados
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config armazena as configurações da aplicação
type Config struct {
	Port     string
	GinMode  string
	LogLevel string
	LogJSON  bool

	// Banco de dados
	DBDriver   string
	SQLitePath string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Cache de preferências
	RedisAddr string
	CacheTTL  time.Duration

	// Estimador
	InputMode   string
	SaveTimeout time.Duration

	// Identidade
	IdentityMode    string
	IdentityHeader  string
	SessionDuration time.Duration
	CookieSecure    bool
	AdminUsername   string
	AdminPassword   string

	// Limite de gravações de preferência por usuário
	SaveRateLimitPerMinute int
}

// ErrInvalidValue indica que uma variável de ambiente tem valor inválido
var ErrInvalidValue = errors.New("valor de configuração inválido")

// Load carrega as configurações do ambiente
func Load() (*Config, error) {
	// Tenta carregar .env de múltiplos locais
	_ = godotenv.Load()          // ./.env
	_ = godotenv.Load("../.env") // diretório pai

	return FromEnv(os.Getenv)
}

// FromEnv monta a configuração a partir de uma função de lookup
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:           getenv("PORT"),
		GinMode:        getenv("GIN_MODE"),
		LogLevel:       getenv("LOG_LEVEL"),
		DBDriver:       strings.ToLower(getenv("DB_DRIVER")),
		SQLitePath:     getenv("SQLITE_PATH"),
		DBHost:         getenv("DB_HOST"),
		DBPort:         getenv("DB_PORT"),
		DBUser:         getenv("DB_USER"),
		DBPassword:     getenv("DB_PASSWORD"),
		DBName:         getenv("DB_NAME"),
		DBSSLMode:      getenv("DB_SSLMODE"),
		RedisAddr:      getenv("REDIS_ADDR"),
		InputMode:      strings.ToLower(getenv("INPUT_MODE")),
		IdentityMode:   strings.ToLower(getenv("IDENTITY_MODE")),
		IdentityHeader: getenv("IDENTITY_HEADER"),
		AdminUsername:  getenv("ADMIN_USERNAME"),
		AdminPassword:  getenv("ADMIN_PASSWORD"),
	}

	var err error
	if cfg.LogJSON, err = parseBool(getenv, "LOG_JSON", false); err != nil {
		return nil, err
	}
	if cfg.CookieSecure, err = parseBool(getenv, "COOKIE_SECURE", false); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = parseDuration(getenv, "CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SaveTimeout, err = parseDuration(getenv, "SAVE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionDuration, err = parseDuration(getenv, "SESSION_DURATION", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SaveRateLimitPerMinute, err = parseInt(getenv, "SAVE_RATE_LIMIT_PER_MINUTE", 60); err != nil {
		return nil, err
	}

	// Defaults
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.GinMode == "" {
		cfg.GinMode = "debug"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.DBDriver == "" {
		cfg.DBDriver = DriverSQLite
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = "pert-estimator.db"
	}
	if cfg.DBPort == "" {
		cfg.DBPort = "5432"
	}
	if cfg.DBSSLMode == "" {
		cfg.DBSSLMode = "disable"
	}
	if cfg.InputMode == "" {
		cfg.InputMode = InputModeLenient
	}
	if cfg.IdentityMode == "" {
		cfg.IdentityMode = IdentityModeSession
	}
	if cfg.IdentityHeader == "" {
		cfg.IdentityHeader = "X-User-ID"
	}

	// Validações
	switch cfg.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if cfg.DBHost == "" || cfg.DBName == "" {
			return nil, errors.New("DB_HOST e DB_NAME são obrigatórios para DB_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("%w: DB_DRIVER=%q", ErrInvalidValue, cfg.DBDriver)
	}

	if cfg.InputMode != InputModeLenient && cfg.InputMode != InputModeStrict {
		return nil, fmt.Errorf("%w: INPUT_MODE=%q", ErrInvalidValue, cfg.InputMode)
	}

	if cfg.IdentityMode != IdentityModeSession && cfg.IdentityMode != IdentityModeHeader {
		return nil, fmt.Errorf("%w: IDENTITY_MODE=%q", ErrInvalidValue, cfg.IdentityMode)
	}

	if cfg.SaveRateLimitPerMinute <= 0 {
		return nil, fmt.Errorf("%w: SAVE_RATE_LIMIT_PER_MINUTE deve ser positivo", ErrInvalidValue)
	}

	return cfg, nil
}

func parseBool(getenv func(string) string, key string, def bool) (bool, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
	}
	return v, nil
}

func parseDuration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
	}
	return v, nil
}

func parseInt(getenv func(string) string, key string, def int) (int, error) {
	raw := getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
	}
	return v, nil
}
