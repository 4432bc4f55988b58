// Package id provides the identifier generators used by docqa.
//
//   - UUID v4 (google/uuid) for sessions and documents
//   - ULID (oklog/ulid) for request ids, which sort by creation time
package id

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Generator defines the interface for ID generators.
type Generator interface {
	// Generate creates a new unique ID.
	Generate() string
}

// Type represents the type of ID generator.
type Type string

const (
	// TypeUUID represents UUID v4 generator.
	TypeUUID Type = "uuid"

	// TypeULID represents ULID generator.
	TypeULID Type = "ulid"
)

// UUIDGenerator generates lower-case UUID v4 strings.
type UUIDGenerator struct{}

// Generate creates a new UUID v4 string.
func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}

// ULIDGenerator generates monotonic ULIDs. It is safe for concurrent use.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewULIDGenerator creates a ULID generator backed by crypto/rand.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Generate creates a new ULID string.
func (g *ULIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

var defaultULID = NewULIDGenerator()

// NewUUID generates a new UUID v4 string.
func NewUUID() string {
	return UUIDGenerator{}.Generate()
}

// NewULID generates a new ULID string.
func NewULID() string {
	return defaultULID.Generate()
}

// New generates a new ID using the specified generator type.
func New(t Type) string {
	if t == TypeULID {
		return NewULID()
	}
	return NewUUID()
}

// ParseUUID validates s and returns its canonical lower-case form.
func ParseUUID(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", ErrInvalidUUID
	}
	return strings.ToLower(u.String()), nil
}

// IsValidUUID checks if a string is a valid UUID.
func IsValidUUID(s string) bool {
	_, err := ParseUUID(s)
	return err == nil
}

// IsValidULID checks if a string is a valid ULID.
func IsValidULID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
