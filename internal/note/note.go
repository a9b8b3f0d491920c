package note

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Note is a single user-authored record. It is the only persisted entity.
type Note struct {
	// ID is a ULID that uniquely identifies this note. Records written by
	// older versions may carry the numeric creation timestamp instead.
	ID string `json:"id" yaml:"id"`

	// Title is the optional user-supplied title; may be empty
	Title string `json:"title" yaml:"title"`

	// Content is the free-form body; may be empty
	Content string `json:"content" yaml:"content"`

	// CreatedAt is the Unix millisecond timestamp set once at creation
	CreatedAt int64 `json:"createdAt" yaml:"createdAt"`

	// UpdatedAt is the Unix millisecond timestamp refreshed on every save
	UpdatedAt int64 `json:"updatedAt" yaml:"updatedAt"`
}

// DerivedTitle returns the display title of the note.
func (n Note) DerivedTitle() string {
	return DerivedTitle(n.Title, n.Content)
}

// UnmarshalJSON decodes a stored note, accepting a numeric or string id.
// Missing title and content decode as empty strings.
func (n *Note) UnmarshalJSON(data []byte) error {
	type alias Note
	aux := struct {
		ID json.RawMessage `json:"id"`
		*alias
	}{alias: (*alias)(n)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	id, err := decodeID(aux.ID)
	if err != nil {
		return err
	}
	n.ID = id
	return nil
}

// decodeID turns a raw JSON id into its string form.
func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	var num json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&num); err != nil {
		return "", fmt.Errorf("invalid note id %s: %w", raw, err)
	}
	return num.String(), nil
}

// Millis converts t to Unix milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// Time converts Unix milliseconds to a time.Time.
func Time(ms int64) time.Time {
	return time.UnixMilli(ms)
}
