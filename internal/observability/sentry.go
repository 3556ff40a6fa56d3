package observability

import (
	"errors"
	"time"

	"StudentPortal/internal/autherr"

	"github.com/getsentry/sentry-go"
)

// InitSentry is a no-op when dsn is empty. The returned func flushes
// buffered events.
func InitSentry(dsn, env, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     release,
	}); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// CaptureErr reports err with tags on its own scope. Upstream failures are
// tagged with the failing store or mail operation and grouped by it.
func CaptureErr(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		var ue *autherr.UpstreamError
		if errors.As(err, &ue) {
			scope.SetTag("op", ue.Op)
			scope.SetFingerprint([]string{"upstream", ue.Op})
		}
		sentry.CaptureException(err)
	})
}
