package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	driverNameConstant             = "pgx"
	defaultPingTimeoutConstant     = 2 * time.Second
	defaultMaxOpenConnsConstant    = 4
	defaultMaxIdleConnsConstant    = 2
	defaultConnMaxLifetimeConstant = 30 * time.Minute
	openErrorTemplateConstant      = "unable to open ledger database: %w"
	pingErrorTemplateConstant      = "unable to reach ledger database: %w"
	urlMissingMessageConstant      = "ledger url is required"
	pingTimeoutMessageConstant     = "ledger ping timeout must be positive"
	maxOpenConnsMessageConstant    = "ledger max open connections must be >= 1"
	maxIdleConnsMessageConstant    = "ledger max idle connections must be between 0 and max open connections"
	connMaxLifetimeMessageConstant = "ledger connection max lifetime must be >= 0"
)

var (
	// ErrURLMissing indicates the ledger configuration lacks a database URL.
	ErrURLMissing = errors.New(urlMissingMessageConstant)
	// ErrPingTimeoutInvalid indicates a non-positive ping timeout.
	ErrPingTimeoutInvalid = errors.New(pingTimeoutMessageConstant)
	// ErrMaxOpenConnsInvalid indicates fewer than one open connection was allowed.
	ErrMaxOpenConnsInvalid = errors.New(maxOpenConnsMessageConstant)
	// ErrMaxIdleConnsInvalid indicates an idle connection limit outside the open connection range.
	ErrMaxIdleConnsInvalid = errors.New(maxIdleConnsMessageConstant)
	// ErrConnMaxLifetimeInvalid indicates a negative connection lifetime.
	ErrConnMaxLifetimeInvalid = errors.New(connMaxLifetimeMessageConstant)
)

// Config describes the ledger database connection.
type Config struct {
	URL             string
	PingTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// WithDefaults fills zero values with the default pool settings.
func (config Config) WithDefaults() Config {
	if config.PingTimeout == 0 {
		config.PingTimeout = defaultPingTimeoutConstant
	}
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = defaultMaxOpenConnsConstant
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = defaultMaxIdleConnsConstant
	}
	if config.ConnMaxLifetime == 0 {
		config.ConnMaxLifetime = defaultConnMaxLifetimeConstant
	}
	return config
}

// Validate reports configuration problems.
func (config Config) Validate() error {
	if len(strings.TrimSpace(config.URL)) == 0 {
		return ErrURLMissing
	}
	if config.PingTimeout <= 0 {
		return ErrPingTimeoutInvalid
	}
	if config.MaxOpenConns < 1 {
		return ErrMaxOpenConnsInvalid
	}
	if config.MaxIdleConns < 0 || config.MaxIdleConns > config.MaxOpenConns {
		return ErrMaxIdleConnsInvalid
	}
	if config.ConnMaxLifetime < 0 {
		return ErrConnMaxLifetimeInvalid
	}
	return nil
}

// Open connects to the ledger database and verifies it is reachable.
func Open(executionContext context.Context, config Config) (*sql.DB, error) {
	if validationError := config.Validate(); validationError != nil {
		return nil, validationError
	}

	database, openError := sql.Open(driverNameConstant, config.URL)
	if openError != nil {
		return nil, fmt.Errorf(openErrorTemplateConstant, openError)
	}

	database.SetMaxOpenConns(config.MaxOpenConns)
	database.SetMaxIdleConns(config.MaxIdleConns)
	database.SetConnMaxLifetime(config.ConnMaxLifetime)

	pingContext, cancel := context.WithTimeout(executionContext, config.PingTimeout)
	defer cancel()
	if pingError := database.PingContext(pingContext); pingError != nil {
		_ = database.Close()
		return nil, fmt.Errorf(pingErrorTemplateConstant, pingError)
	}

	return database, nil
}
