package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// ErrForeignCursor is returned when a cursor issued for one ledger is
// replayed against another.
var ErrForeignCursor = errors.New("cursor belongs to a different listing")

// Params are the query inputs of a cursor listing.
type Params struct {
	Limit  int
	Cursor string
}

// Size is the page size after defaults and the cap.
func (p Params) Size() int {
	switch {
	case p.Limit <= 0:
		return DefaultLimit
	case p.Limit > MaxLimit:
		return MaxLimit
	default:
		return p.Limit
	}
}

// FetchLimit is one more than Size so a next page can be detected.
func (p Params) FetchLimit() int {
	return p.Size() + 1
}

// Cursor is the last row of a page in a (timestamp DESC, id DESC) scan,
// bound to the scope (a member for wallet ledgers) it was issued for.
type Cursor struct {
	Scope uuid.UUID
	At    time.Time
	ID    uuid.UUID
}

// Encode renders a URL-safe token.
func (c Cursor) Encode() string {
	raw := strings.Join([]string{c.Scope.String(), strconv.FormatInt(c.At.UTC().UnixNano(), 10), c.ID.String()}, ".")
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses a token from Encode. An empty value means the first page.
func Decode(value string, scope uuid.UUID) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	parts := strings.Split(string(raw), ".")
	if len(parts) != 3 {
		return nil, errors.New("invalid cursor format")
	}
	owner, err := uuid.Parse(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid cursor scope: %w", err)
	}
	if owner != scope {
		return nil, ErrForeignCursor
	}
	nanos, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	id, err := uuid.Parse(parts[2])
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return &Cursor{Scope: owner, At: time.Unix(0, nanos).UTC(), ID: id}, nil
}

// Trim cuts rows fetched with FetchLimit down to Size and returns the
// cursor of the next page, or "" on the last page.
func Trim[T any](rows []T, params Params, scope uuid.UUID, key func(T) (time.Time, uuid.UUID)) ([]T, string) {
	size := params.Size()
	if len(rows) <= size {
		return rows, ""
	}
	at, id := key(rows[size-1])
	return rows[:size], Cursor{Scope: scope, At: at, ID: id}.Encode()
}
