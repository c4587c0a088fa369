// Package audit records security-relevant rejections: failed logins,
// lockouts, denied authorizations. Every event is written to the
// structured log and, when a broker publisher is wired, mirrored onto the
// security.events queue. The threat level is observability only; it never
// feeds back into control flow.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Threat levels, lowest to highest.
const (
	ThreatNone   = "none"
	ThreatLow    = "low"
	ThreatMedium = "medium"
	ThreatHigh   = "high"
)

// Event kinds recorded across the auth core.
const (
	KindLoginValidation = "login_validation_failed"
	KindLoginFailed     = "login_failed"
	KindAccountLocked   = "account_locked"
	KindTokenMissing    = "token_missing"
	KindTokenExpired    = "token_expired"
	KindTokenInvalid    = "token_invalid"
	KindAccountInactive = "account_inactive"
	KindAccessDenied    = "access_denied"
	KindSelfEscalation  = "self_escalation_blocked"
	KindConfigError     = "configuration_error"
)

// Event is a single audit record.
type Event struct {
	ID          string
	Kind        string
	ThreatLevel string
	UserID      uint64 // zero when the principal is unknown
	Email       string
	IP          string
	Endpoint    string
	Detail      string
	OccurredAt  time.Time
}

// Publisher forwards events to the message broker. Publish failures are
// the publisher's problem; recording never blocks a request on the broker.
type Publisher interface {
	PublishSecurityEvent(ctx context.Context, e Event) error
}

// Recorder writes audit events to the log and optionally to a Publisher.
type Recorder struct {
	log *zap.Logger
	pub Publisher
}

// NewRecorder builds a Recorder. pub may be nil when no broker is
// configured; events then only hit the structured log.
func NewRecorder(log *zap.Logger, pub Publisher) *Recorder {
	return &Recorder{log: log, pub: pub}
}

// Record assigns the event an ID and timestamp, logs it, and hands it to
// the publisher in the background. Publishing is detached from the request
// context so a finished request cannot cancel the broker write.
func (r *Recorder) Record(e Event) {
	e.ID = uuid.NewString()
	e.OccurredAt = time.Now().UTC()
	if e.ThreatLevel == "" {
		e.ThreatLevel = ThreatNone
	}

	fields := []zap.Field{
		zap.String("event_id", e.ID),
		zap.String("kind", e.Kind),
		zap.String("threat_level", e.ThreatLevel),
		zap.String("ip", e.IP),
		zap.String("endpoint", e.Endpoint),
	}
	if e.UserID != 0 {
		fields = append(fields, zap.Uint64("user_id", e.UserID))
	}
	if e.Email != "" {
		fields = append(fields, zap.String("email", e.Email))
	}
	if e.Detail != "" {
		fields = append(fields, zap.String("detail", e.Detail))
	}
	r.log.Warn("security event", fields...)

	if r.pub != nil {
		go func() {
			pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.pub.PublishSecurityEvent(pctx, e); err != nil {
				r.log.Warn("security event publish failed", zap.String("event_id", e.ID), zap.Error(err))
			}
		}()
	}
}
