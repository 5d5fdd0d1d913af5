package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/cleberrangel/pert-estimator/internal/logger"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect identifica o banco em uso
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// MemoryPath abre um banco SQLite em memória (usado nos testes)
const MemoryPath = ":memory:"

// Config contém as configurações de conexão com o banco
type Config struct {
	Driver Dialect

	// SQLite
	Path string

	// PostgreSQL
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// DB agrupa a conexão e o dialeto, usado pelos repositórios para reescrever placeholders
type DB struct {
	*sql.DB
	Dialect Dialect
}

// PoolStats contains database connection pool statistics
type PoolStats struct {
	MaxOpenConnections int   `json:"max_open_connections"`
	OpenConnections    int   `json:"open_connections"`
	InUse              int   `json:"in_use"`
	Idle               int   `json:"idle"`
	WaitCount          int64 `json:"wait_count"`
	WaitDuration       int64 `json:"wait_duration_ms"`
}

// GetPoolStats returns current connection pool statistics
func GetPoolStats(db *sql.DB) PoolStats {
	stats := db.Stats()
	return PoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.Milliseconds(),
	}
}

// Open abre o banco configurado
func Open(cfg Config) (*DB, error) {
	switch cfg.Driver {
	case Postgres:
		db, err := Connect(cfg)
		if err != nil {
			return nil, err
		}
		return &DB{DB: db, Dialect: Postgres}, nil
	case SQLite, "":
		return OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("driver de banco não suportado: %q", cfg.Driver)
	}
}

// Connect estabelece conexão com o PostgreSQL
func Connect(cfg Config) (*sql.DB, error) {
	log := logger.Global()

	// Apply defaults if not set
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 10
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = 2
	}

	// Constrói string de conexão
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	log.Info().
		Str("host", cfg.Host).
		Str("port", cfg.Port).
		Str("user", cfg.User).
		Str("dbname", cfg.DBName).
		Str("sslmode", cfg.SSLMode).
		Int("max_open_conns", cfg.MaxOpenConns).
		Int("max_idle_conns", cfg.MaxIdleConns).
		Msg("Conectando ao PostgreSQL")

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir conexão: %w", err)
	}

	// Configura pool de conexões
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	db.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	// Testa conexão
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("erro ao testar conexão: %w", err)
	}

	log.Info().Msg("Conexão com PostgreSQL estabelecida com pool configurado")
	return db, nil
}

// OpenSQLite abre (ou cria) o banco SQLite em path.
// MemoryPath abre um banco em memória.
func OpenSQLite(path string) (*DB, error) {
	log := logger.Global()

	if path == "" {
		path = MemoryPath
	}
	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("erro ao criar diretório do banco: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir banco SQLite: %w", err)
	}

	// Uma conexão só: evita "database is locked" e mantém o banco em memória vivo
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("erro ao testar conexão: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("erro ao configurar busy_timeout: %w", err)
	}

	if path != MemoryPath {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("erro ao configurar journal_mode: %w", err)
		}
	}

	log.Info().Str("path", path).Msg("Banco SQLite aberto")
	return &DB{DB: db, Dialect: SQLite}, nil
}

// Close fecha a conexão com o banco
func Close(db *DB) error {
	if db != nil && db.DB != nil {
		return db.DB.Close()
	}
	return nil
}

var placeholderPattern = regexp.MustCompile(`\$\d+`)

// Rebind converte placeholders $1, $2... para ? quando o dialeto é SQLite.
// As consultas devem usar cada placeholder uma única vez e em ordem.
func (db *DB) Rebind(query string) string {
	if db.Dialect != SQLite {
		return query
	}
	return placeholderPattern.ReplaceAllString(query, "?")
}
