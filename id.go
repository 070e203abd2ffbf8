package conclave

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
)

// NewID generates a globally unique, time-sortable UUIDv7 (RFC 9562).
// Used for contribution and clarification-question ids.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewDebateID returns a debate id of the form
// deb-YYYYMMDD-HHMMSS-<4 random base36 chars>. This is the only legal
// debate id format; file stores use it directly as the file name.
func NewDebateID(t time.Time) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	suffix := make([]byte, 4)
	for i, c := range b {
		suffix[i] = base36[int(c)%len(base36)]
	}
	return "deb-" + t.Format("20060102-150405") + "-" + string(suffix)
}
