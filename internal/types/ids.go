package types

import (
	"time"

	"github.com/google/uuid"
)

// NewProgramID generates a UUIDv7 program identifier.
// Time-ordered IDs keep stored program versions in creation order.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewProgramID() ProgramID {
	return ProgramID(uuid.Must(uuid.NewV7()).String())
}

// ParseProgramID validates and converts a string to ProgramID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the store.
func ParseProgramID(s string) (ProgramID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return ProgramID(s), nil
}

// ProgramIDTime extracts the timestamp embedded in a UUIDv7 ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func ProgramIDTime(id ProgramID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
