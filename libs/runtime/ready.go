package runtime

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// ReadyCheck is a named dependency probe reported by /readyz.
// Optional checks are reported in the body but never fail readiness.
type ReadyCheck struct {
	Name     string
	Check    func(context.Context) error
	Optional bool
}

// NewBaseMux returns a mux with /healthz and /readyz mounted.
func NewBaseMux(timeout time.Duration, checks ...ReadyCheck) *http.ServeMux {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		status, body := runChecks(r.Context(), timeout, checks)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
	return mux
}

func runChecks(ctx context.Context, timeout time.Duration, checks []ReadyCheck) (int, string) {
	var failures, degraded []string
	for _, c := range checks {
		if c.Check == nil {
			continue
		}
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		err := c.Check(checkCtx)
		cancel()
		if err == nil {
			continue
		}
		name := c.Name
		if name == "" {
			name = "dependency"
		}
		if c.Optional {
			degraded = append(degraded, name+": "+err.Error())
			continue
		}
		failures = append(failures, name+": "+err.Error())
	}
	if len(failures) > 0 {
		return http.StatusServiceUnavailable, strings.Join(failures, "; ")
	}
	if len(degraded) > 0 {
		return http.StatusOK, "degraded: " + strings.Join(degraded, "; ")
	}
	return http.StatusOK, "ok"
}
