// Package inbox reads the most recent push notification delivered to this
// device. The platform push agent owns delivery; it drops the latest payload
// as JSON in a file and this package only reads it back for display.
package inbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Notification is a delivered push notification.
type Notification struct {
	Title      string         `json:"title"`
	Body       string         `json:"body"`
	Data       map[string]any `json:"data,omitempty"`
	ReceivedAt time.Time      `json:"receivedAt,omitempty"`
}

// IsZero reports whether nothing has been received.
func (n Notification) IsZero() bool {
	return n.Title == "" && n.Body == "" && len(n.Data) == 0
}

// DataJSON renders Data compactly, or "" when there is none.
func (n Notification) DataJSON() string {
	if len(n.Data) == 0 {
		return ""
	}
	raw, err := json.Marshal(n.Data)
	if err != nil {
		return ""
	}
	return string(raw)
}

// Source yields the latest delivered notification.
type Source interface {
	Latest(ctx context.Context) (Notification, error)
}

// File reads the notification from a JSON file. A missing file means nothing
// has arrived yet.
type File string

func (f File) Latest(context.Context) (Notification, error) {
	if f == "" {
		return Notification{}, nil
	}
	data, err := os.ReadFile(string(f))
	if err != nil {
		if os.IsNotExist(err) {
			return Notification{}, nil
		}
		return Notification{}, fmt.Errorf("read inbox: %w", err)
	}
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, fmt.Errorf("decode inbox: %w", err)
	}
	return n, nil
}
