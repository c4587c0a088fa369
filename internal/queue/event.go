// Package queue defines message payloads exchanged over the message broker
// and the background consumer that drains them.
package queue

// SecurityEventName is the queue every security event is published to.
const SecurityEventName = "security.events"

// SecurityEvent is published for every authentication or authorization
// rejection and for lockout transitions. It carries enough context for a
// downstream consumer to reconstruct an audit trail without querying the
// primary database. Secrets and password material never appear here.
type SecurityEvent struct {
	EventID     string `json:"event_id"`
	Kind        string `json:"kind"`
	ThreatLevel string `json:"threat_level"`
	UserID      uint64 `json:"user_id,omitempty"`
	Email       string `json:"email,omitempty"`
	IP          string `json:"ip,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
	Detail      string `json:"detail,omitempty"`
	OccurredAt  string `json:"occurred_at"`
}
