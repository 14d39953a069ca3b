package telemetry

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/birchwood/canopy"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Authentication metrics
	RegistrationsTotal      metric.Int64Counter
	RegistrationErrorsTotal metric.Int64Counter
	LoginsTotal             metric.Int64Counter
	LoginFailuresTotal      metric.Int64Counter
	PasswordResetsTotal     metric.Int64Counter
	EmailVerificationsTotal metric.Int64Counter

	// Email metrics
	EmailsSentTotal   metric.Int64Counter
	EmailErrorsTotal  metric.Int64Counter
	EmailSendDuration metric.Float64Histogram
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary.
// Instrument creation failures are logged and leave the instrument nil; the
// recording helpers tolerate nil instruments.
func GetMetrics() *Metrics {
	once.Do(func() {
		meter := otel.Meter(meterName)
		metrics = &Metrics{}

		var err error

		metrics.RegistrationsTotal, err = meter.Int64Counter("auth.registrations.total",
			metric.WithDescription("Total organization registrations"))
		logInstrumentErr(err, "auth.registrations.total")

		metrics.RegistrationErrorsTotal, err = meter.Int64Counter("auth.registration_errors.total",
			metric.WithDescription("Total failed organization registrations"))
		logInstrumentErr(err, "auth.registration_errors.total")

		metrics.LoginsTotal, err = meter.Int64Counter("auth.logins.total",
			metric.WithDescription("Total successful logins"))
		logInstrumentErr(err, "auth.logins.total")

		metrics.LoginFailuresTotal, err = meter.Int64Counter("auth.login_failures.total",
			metric.WithDescription("Total failed login attempts"))
		logInstrumentErr(err, "auth.login_failures.total")

		metrics.PasswordResetsTotal, err = meter.Int64Counter("auth.password_resets.total",
			metric.WithDescription("Total completed password resets"))
		logInstrumentErr(err, "auth.password_resets.total")

		metrics.EmailVerificationsTotal, err = meter.Int64Counter("auth.email_verifications.total",
			metric.WithDescription("Total completed email verifications"))
		logInstrumentErr(err, "auth.email_verifications.total")

		metrics.EmailsSentTotal, err = meter.Int64Counter("mail.sent.total",
			metric.WithDescription("Total emails sent"))
		logInstrumentErr(err, "mail.sent.total")

		metrics.EmailErrorsTotal, err = meter.Int64Counter("mail.errors.total",
			metric.WithDescription("Total email send failures"))
		logInstrumentErr(err, "mail.errors.total")

		metrics.EmailSendDuration, err = meter.Float64Histogram("mail.send.duration",
			metric.WithDescription("Email send duration in seconds"),
			metric.WithUnit("s"))
		logInstrumentErr(err, "mail.send.duration")
	})

	return metrics
}

func logInstrumentErr(err error, name string) {
	if err != nil {
		log.Warn().Err(err).Str("instrument", name).Msg("Failed to create metric instrument")
	}
}

// AddCounter increments a counter if the instrument is available.
func AddCounter(ctx context.Context, counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDuration records a histogram value if the instrument is available.
func RecordDuration(ctx context.Context, hist metric.Float64Histogram, seconds float64, attrs ...attribute.KeyValue) {
	if hist == nil {
		return
	}
	hist.Record(ctx, seconds, metric.WithAttributes(attrs...))
}
