package postgres

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/joshu-sajeev/delayedjobs/migrations"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-envconfig"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const pingTimeout = 2 * time.Second

type Config struct {
	User           string        `env:"POSTGRES_USER,default=postgres"`
	Password       string        `env:"POSTGRES_PASSWORD,default=postgres"`
	Host           string        `env:"POSTGRES_HOST,default=postgres"`
	Port           string        `env:"POSTGRES_PORT,default=5432"`
	Database       string        `env:"POSTGRES_DB,default=calendardb"`
	MaxRetries     int           `env:"DB_MAX_RETRIES,default=10"`
	RetryDelay     time.Duration `env:"DB_RETRY_DELAY,default=2s"`
	ConnectTimeout int           `env:"DB_CONNECT_TIMEOUT,default=5"`
	LogLevelString string        `env:"DB_LOG_LEVEL,default=warn"`
	LogLevel       logger.LogLevel

	// Zero MaxOpenConns leaves the pool unbounded.
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=50"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=10"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=1h"`
}

// to help with testing
var envProcess = envconfig.Process

func LoadConfigFromEnv(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg.LogLevel = ParseLogLevel(cfg.LogLevelString)
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	var problems []string

	required := []struct{ env, value string }{
		{"POSTGRES_USER", cfg.User},
		{"POSTGRES_HOST", cfg.Host},
		{"POSTGRES_PORT", cfg.Port},
		{"POSTGRES_DB", cfg.Database},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			problems = append(problems, r.env+" is required")
		}
	}

	if p := strings.TrimSpace(cfg.Port); p != "" {
		switch port, err := strconv.Atoi(p); {
		case err != nil:
			problems = append(problems, "POSTGRES_PORT must be a valid number")
		case port < 1 || port > 65535:
			problems = append(problems, "POSTGRES_PORT must be between 1 and 65535")
		}
	}

	switch {
	case cfg.RetryDelay <= 0:
		problems = append(problems, "DB_RETRY_DELAY must be positive")
	case cfg.RetryDelay > 10*time.Minute:
		problems = append(problems, "DB_RETRY_DELAY must not exceed 10 minutes")
	}

	nonNegative := []struct {
		env   string
		value int
	}{
		{"DB_MAX_RETRIES", cfg.MaxRetries},
		{"DB_CONNECT_TIMEOUT", cfg.ConnectTimeout},
		{"DB_MAX_OPEN_CONNS", cfg.MaxOpenConns},
		{"DB_MAX_IDLE_CONNS", cfg.MaxIdleConns},
	}
	for _, n := range nonNegative {
		if n.value < 0 {
			problems = append(problems, n.env+" must be non-negative")
		}
	}

	if cfg.MaxOpenConns > 0 && cfg.MaxIdleConns > cfg.MaxOpenConns {
		problems = append(problems, "DB_MAX_IDLE_CONNS must not exceed DB_MAX_OPEN_CONNS")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// buildDSN pins the session time zone to UTC so run_at and locked_at
// round-trip without conversion.
func buildDSN(cfg *Config) string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable connect_timeout=%d TimeZone=UTC",
		cfg.Host, cfg.User, cfg.Password, cfg.Database, cfg.Port, cfg.ConnectTimeout,
	)
}

// ConnectDB opens the job store, retrying up to cfg.MaxRetries times with
// cfg.RetryDelay between attempts. A nil cfg is loaded from the environment.
func ConnectDB(ctx context.Context, cfg *Config) (*gorm.DB, error) {
	if cfg == nil {
		loaded, err := LoadConfigFromEnv(ctx)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	log.Printf("[DB] Connecting to %s@%s:%s/%s", cfg.User, cfg.Host, cfg.Port, cfg.Database)

	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		db, err := open(ctx, cfg)
		if err == nil {
			log.Printf("[DB] Connected on attempt %d", attempt)
			return db, nil
		}

		log.Printf("[DB][WARN] attempt %d/%d: %s, retrying in %v",
			attempt, cfg.MaxRetries, simplifyDBError(err), cfg.RetryDelay)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect database: %w", ctx.Err())
		case <-time.After(cfg.RetryDelay):
		}
	}

	return nil, fmt.Errorf("database connection failed after %d attempts", cfg.MaxRetries)
}

// open makes a single connection attempt and applies pool limits once the
// server answers a ping.
func open(ctx context.Context, cfg *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(buildDSN(cfg)), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// simplifyDBError turns driver errors into a short message safe to log
// without the DSN.
func simplifyDBError(err error) string {
	msg := err.Error()

	switch {
	case strings.Contains(msg, "password authentication failed"):
		return "invalid database credentials"
	case strings.Contains(msg, "SASL"):
		return "authentication error"
	case strings.Contains(msg, "does not exist"):
		return "database does not exist"
	case strings.Contains(msg, "no such host"):
		return "cannot resolve database host"
	case strings.Contains(msg, "timeout"):
		return "database connection timed out"
	case strings.Contains(msg, "connect"):
		return "cannot reach database server"
	}
	return "database error"
}

var gormLevels = map[string]logger.LogLevel{
	"silent": logger.Silent,
	"error":  logger.Error,
	"warn":   logger.Warn,
	"info":   logger.Info,
}

// ParseLogLevel maps DB_LOG_LEVEL to a gorm log level, defaulting to warn.
func ParseLogLevel(levelStr string) logger.LogLevel {
	if level, ok := gormLevels[strings.ToLower(strings.TrimSpace(levelStr))]; ok {
		return level
	}
	return logger.Warn
}

// Migrate applies the embedded goose migrations.
func Migrate(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(sqlDB, "."); err != nil {
		return fmt.Errorf("run goose migrations: %w", err)
	}

	log.Println("[DB] Migrations applied")
	return nil
}
