package view

import (
	"encoding/json"
	"time"
	"unicode/utf8"
)

// PreviewLength is the number of characters of payload shown in the table.
const PreviewLength = 100

// User returns the row's user ID, or "Anonymous".
func (r EventRow) User() string {
	if r.Event.UserID == nil || *r.Event.UserID == "" {
		return "Anonymous"
	}
	return *r.Event.UserID
}

// Preview returns the event payload as JSON, truncated to PreviewLength
// characters with a trailing "..." when cut.
func (r EventRow) Preview() string {
	data := r.Event.Data
	if data == nil {
		return "{}"
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}

	s := string(b)
	if utf8.RuneCountInString(s) <= PreviewLength {
		return s
	}
	return string([]rune(s)[:PreviewLength]) + "..."
}

// When returns the row's display time: the parsed creation time as
// HH:MM:SS in loc, or the server's raw timestamp when it does not parse
// (pushed events carry "just now").
func (r EventRow) When(loc *time.Location) string {
	if t, ok := r.Event.Time(); ok {
		if loc == nil {
			loc = time.Local
		}
		return t.In(loc).Format("15:04:05")
	}
	return r.Event.Timestamp
}
