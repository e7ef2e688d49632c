package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Cursor pins a position in a (created_at DESC, id DESC) ordering. Clients
// carry it opaquely between pages, so results stay stable while new rows are
// inserted ahead of the cursor.
type Cursor struct {
	T  time.Time `json:"t"`
	ID uint      `json:"id"`
}

// EncodeCursor renders a cursor as URL-safe base64 over its JSON form. A nil
// cursor encodes to the empty string.
func EncodeCursor(c *Cursor) string {
	if c == nil {
		return ""
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a client-supplied cursor. The empty string means "start
// from the top"; anything unparseable is a validation failure, not an
// internal one.
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: bad cursor", ErrValidation)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: bad cursor", ErrValidation)
	}
	if c.ID == 0 && c.T.IsZero() {
		return nil, fmt.Errorf("%w: bad cursor", ErrValidation)
	}
	return &c, nil
}

// cursorFor derives the next-page cursor from the last row of a full page.
func cursorFor(t time.Time, id uint) *Cursor {
	return &Cursor{T: t, ID: id}
}
