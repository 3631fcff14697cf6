// Package alerting delivers rendered market alerts to chat channels.
package alerting

import (
	"context"
	"errors"
	"time"
)

// ErrNoChannel is returned when a message has nowhere to go.
var ErrNoChannel = errors.New("alerting: no destination channel")

// Field is a name/value pair shown beneath the alert body.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Button is a single link action attached to an alert.
type Button struct {
	Label string
	URL   string
}

// Message is a rich alert. A message with only Text set is a plain notice.
type Message struct {
	Text string

	Title        string
	Description  string
	URL          string
	Author       string
	AuthorURL    string
	AuthorIcon   string
	Fields       []Field
	ThumbnailURL string
	ImageURL     string
	Footer       string
	FooterIcon   string
	Timestamp    time.Time
	Color        int
	Button       *Button
}

// IsNotice reports whether the message carries no embed content.
func (m Message) IsNotice() bool {
	return m.Title == "" && m.Description == "" && len(m.Fields) == 0
}

// Notifier delivers a message to a channel.
type Notifier interface {
	Send(ctx context.Context, channel string, msg Message) error
}

// Multi fans a message out to every notifier. All notifiers are attempted and the
// first error is returned.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, channel string, msg Message) error {
	var firstErr error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, channel, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ Notifier = Multi(nil)
