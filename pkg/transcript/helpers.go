package transcript

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// generateID creates a random 24-char hex ID with a time prefix for ordering.
func generateID() string {
	b := make([]byte, 12)
	// First 4 bytes: unix timestamp for natural ordering
	ts := uint32(time.Now().Unix())
	b[0] = byte(ts >> 24)
	b[1] = byte(ts >> 16)
	b[2] = byte(ts >> 8)
	b[3] = byte(ts)
	_, _ = rand.Read(b[4:])
	return hex.EncodeToString(b)
}

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"
