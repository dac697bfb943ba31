package transcoding

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RegisterBuiltins registers the transcodings every deployment needs:
// uuid.UUID (sequence ids and foreign aggregate references embedded in
// event attributes) and time.Time (RFC3339Nano, matching the wire format
// the teacher's services already use for timestamps such as
// audit_logs.created_at and the outbox envelope's implicit ordering).
//
// Call this once during process startup, before registering any
// domain-specific transcodings.
func RegisterBuiltins(t *Transcoder) {
	Register[uuid.UUID](t, "uuid",
		func(v uuid.UUID) (any, error) { return v.String(), nil },
		func(base any) (uuid.UUID, error) {
			s, ok := base.(string)
			if !ok {
				return uuid.UUID{}, fmt.Errorf("uuid transcoding: expected string, got %T", base)
			}
			return uuid.Parse(s)
		},
	)

	Register[time.Time](t, "datetime",
		func(v time.Time) (any, error) { return v.UTC().Format(time.RFC3339Nano), nil },
		func(base any) (time.Time, error) {
			s, ok := base.(string)
			if !ok {
				return time.Time{}, fmt.Errorf("datetime transcoding: expected string, got %T", base)
			}
			return time.Parse(time.RFC3339Nano, s)
		},
	)

	// Decimal is a fixed-point amount carried as its exact decimal string
	// form (e.g. "19.99"), avoiding float64 rounding — the same convention
	// the teacher's finance-adjacent services use when moving money amounts
	// through JSON.
	Register[Decimal](t, "decimal",
		func(v Decimal) (any, error) { return string(v), nil },
		func(base any) (Decimal, error) {
			s, ok := base.(string)
			if !ok {
				return "", fmt.Errorf("decimal transcoding: expected string, got %T", base)
			}
			return Decimal(s), nil
		},
	)
}

// Decimal is an exact-string fixed-point value, distinct from string so
// callers can opt into decimal transcoding deliberately.
type Decimal string
