// Package report forwards failures to Sentry when SENTRY_DSN is set.
package report

import (
	"os"
	"time"

	sentry "github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	logger  = zap.NewNop()
	enabled bool
)

// InitializeLogger sets the logger for the report package.
func InitializeLogger(l *zap.Logger) {
	logger = l
}

// Init configures Sentry from SENTRY_DSN and RELEASE. Without a DSN every
// capture is a no-op.
func Init(component string) error {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		logger.Debug("SENTRY_DSN not set, error reporting disabled")
		return nil
	}
	return initWith(component, sentry.ClientOptions{
		Dsn:              dsn,
		Release:          os.Getenv("RELEASE"),
		TracesSampleRate: 1.0,
	})
}

func initWith(component string, opts sentry.ClientOptions) error {
	if err := sentry.Init(opts); err != nil {
		return err
	}
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
	})
	enabled = true
	logger.Info("Error reporting enabled", zap.String("component", component))
	return nil
}

// Flush waits up to timeout for buffered events to be sent.
func Flush(timeout time.Duration) {
	if enabled {
		sentry.Flush(timeout)
	}
}

func capture(tags map[string]string, err error) {
	if !enabled || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}

// CaptureRegionError reports a region that failed during a harvest run.
func CaptureRegionError(code string, err error) {
	capture(map[string]string{"region": code}, err)
}

// CaptureLoadError reports a failed graph load pass.
func CaptureLoadError(pass string, err error) {
	capture(map[string]string{"pass": pass}, err)
}

// CaptureError reports err, tagging it with the operation that failed.
func CaptureError(op string, err error) {
	capture(map[string]string{"op": op}, err)
}

// GinMiddleware recovers panics in handlers and reports them.
func GinMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{Repanic: true})
}
