package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/careline/authcore/internal/audit"
	"github.com/careline/authcore/lockout"
	"github.com/careline/authcore/password"
	"github.com/careline/authcore/session"
	"github.com/careline/authcore/token"
)

// Engine is the credential and session lifecycle manager. Construct it with
// [New]; an Engine is immutable after Build and safe for concurrent use.
type Engine struct {
	config      Config
	sessions    session.Store
	credentials CredentialStore
	hasher      *password.Hasher
	strength    password.StrengthPolicy
	signer      *token.Signer
	lockout     lockout.Policy
	metrics     *Metrics
	audit       *audit.Dispatcher
}

// Close stops the audit dispatcher after draining buffered events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports audit events discarded under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the current counter values.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// ParseAccessToken validates a signed access token and returns its claims.
// Purely local: no store is consulted, so revocation is not reflected here.
func (e *Engine) ParseAccessToken(tokenStr string) (*token.Claims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.signer.Parse(tokenStr)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalidCredential
	}
	return claims, nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(ctx context.Context, event AuditEvent) {
	if e == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	e.audit.Emit(ctx, event)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// wrapStoreErr maps credential-store failures onto the engine's sentinels.
// Unknown credentials become ErrInvalidCredential so callers cannot probe
// for account existence.
func wrapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCredentialNotFound):
		return ErrInvalidCredential
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
