package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/birchwood/canopy/internal/auth"
	httpmiddleware "github.com/birchwood/canopy/internal/http"
	"github.com/birchwood/canopy/internal/logger"
	"github.com/birchwood/canopy/internal/mail"
	"github.com/birchwood/canopy/internal/server"
	"github.com/birchwood/canopy/internal/service"
	"github.com/birchwood/canopy/internal/store"
	memorystore "github.com/birchwood/canopy/internal/store/memory"
	postgresstore "github.com/birchwood/canopy/internal/store/postgres"
	"github.com/birchwood/canopy/internal/telemetry"
)

type ServerCmd struct {
	// Server configuration
	Listen  string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"CANOPY_LISTEN"`
	BaseURL string `help:"externally reachable base URL for email links" default:"http://localhost:8080" env:"CANOPY_BASE_URL"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"http://localhost" env:"CANOPY_CORS_ORIGINS"`

	// Token configuration
	JWTSecret string        `help:"secret key for HMAC signing of bearer tokens" env:"CANOPY_JWT_SECRET"`
	TokenTTL  time.Duration `help:"bearer token TTL" default:"24h" env:"CANOPY_TOKEN_TTL"`

	// Operational modes
	Tracing bool `help:"enable tracing" default:"false" env:"CANOPY_TRACING"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"CANOPY_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`

	// Mailer configuration
	MailerType string    `help:"mailer type (log or smtp)" default:"log" env:"CANOPY_MAILER_TYPE" enum:"log,smtp"`
	SMTP       SMTPFlags `embed:"" prefix:"smtp-"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"CANOPY_POSTGRES_AUTO_MIGRATE"`
}

// validate is called from Run only when the postgres store is selected, so a
// memory-store server can start without any postgres flags.
func (s *PostgresStoreFlags) validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

type SMTPFlags struct {
	Host     string `help:"SMTP relay host" env:"CANOPY_SMTP_HOST"`
	Port     int    `help:"SMTP relay port" default:"587" env:"CANOPY_SMTP_PORT"`
	Username string `help:"SMTP username" env:"CANOPY_SMTP_USERNAME"`
	Password string `help:"SMTP password" env:"CANOPY_SMTP_PASSWORD"`
	From     string `help:"default sender address" env:"CANOPY_SMTP_FROM"`
	MaxTries uint   `help:"delivery attempts before giving up" default:"3"`
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := context.Background()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, "canopy-server", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	// Create the store based on store type
	var st store.Store

	switch c.StoreType {
	case "postgres":
		if err := c.PostgresStore.validate(); err != nil {
			return err
		}

		poolCfg := &postgresstore.PoolConfig{
			ConnString:      c.PostgresStore.ConnString,
			MaxConns:        c.PostgresStore.MaxConns,
			MinConns:        c.PostgresStore.MinConns,
			MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
		}
		pool, err := postgresstore.NewPool(ctx, poolCfg)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		defer pool.Close()

		if c.PostgresStore.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations completed")
		}

		st = postgresstore.NewStore(pool)
		log.Info().Msg("Using PostgreSQL store")

	default:
		st = memorystore.NewStore()
		log.Warn().Msg("Using in-memory store; data is lost on restart")
	}

	// Create the mailer based on mailer type
	var mailer mail.Mailer
	switch c.MailerType {
	case "smtp":
		smtpMailer, err := mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     c.SMTP.Host,
			Port:     c.SMTP.Port,
			Username: c.SMTP.Username,
			Password: c.SMTP.Password,
			From:     c.SMTP.From,
			MaxTries: c.SMTP.MaxTries,
		})
		if err != nil {
			return err
		}
		mailer = smtpMailer
		log.Info().Str("host", c.SMTP.Host).Msg("Using SMTP mailer")

	default:
		mailer = mail.NewLogMailer()
		log.Warn().Msg("Using log mailer; no email will be delivered")
	}

	issuer, err := auth.NewTokenIssuer([]byte(c.JWTSecret), c.TokenTTL)
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	svc := service.NewAuthService(st, issuer, mailer, c.BaseURL)

	srv := server.NewServer(svc, issuer, st.Users())
	handler := httpmiddleware.ClientIPMiddleware()(
		httpmiddleware.RequestLogger(log)(
			srv.Handler(c.CORSOrigins)))

	log.Info().Str("addr", c.Listen).Msg("Starting HTTP server")
	return configureHTTPServer(c.Listen, handler).ListenAndServe()
}
