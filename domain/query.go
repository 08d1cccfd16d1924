package domain

import (
	"encoding/base64"
	"fmt"
)

// Query is a discovery request after validation.
type Query struct {
	Filter Filter
	Cursor Cursor
	Limit  int
}

// Page is one slice of an ordered snapshot. NextCursor is empty when the snapshot is exhausted.
type Page struct {
	Entries    []ServerEntry
	NextCursor Cursor
}

// End reports whether no further page follows.
func (p Page) End() bool { return p.NextCursor == "" }

// Cursor resumes a listing after the last identity of the previous page.
type Cursor string

// CursorAfter builds the cursor that resumes after id.
func CursorAfter(id Identity) Cursor {
	return Cursor(base64.RawURLEncoding.EncodeToString([]byte(id)))
}

// After decodes the identity the cursor resumes after. The zero cursor starts from the beginning.
func (c Cursor) After() (Identity, error) {
	if c == "" {
		return "", nil
	}
	b, err := base64.RawURLEncoding.DecodeString(string(c))
	if err != nil || len(b) == 0 {
		return "", &FieldError{Field: "cursor", Reason: fmt.Sprintf("invalid cursor %q", string(c))}
	}
	return Identity(b), nil
}
