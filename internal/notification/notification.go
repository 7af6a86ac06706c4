// Package notification describes the notification channel and the
// persistent notification shown while the service runs in the foreground.
package notification

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned by Validate for unusable channel or notification values.
var ErrInvalid = errors.New("invalid notification")

// Importance mirrors the Android NotificationManager importance levels.
type Importance int

const (
	ImportanceNone    Importance = 0
	ImportanceMin     Importance = 1
	ImportanceLow     Importance = 2
	ImportanceDefault Importance = 3
	ImportanceHigh    Importance = 4
)

var importanceNames = map[Importance]string{
	ImportanceNone:    "none",
	ImportanceMin:     "min",
	ImportanceLow:     "low",
	ImportanceDefault: "default",
	ImportanceHigh:    "high",
}

func (i Importance) String() string {
	if s, ok := importanceNames[i]; ok {
		return s
	}
	return fmt.Sprintf("importance(%d)", int(i))
}

// ParseImportance converts a config value such as "default" or "high".
// An empty string yields ImportanceDefault.
func ParseImportance(s string) (Importance, error) {
	if s == "" {
		return ImportanceDefault, nil
	}
	for imp, name := range importanceNames {
		if name == s {
			return imp, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown importance %q", ErrInvalid, s)
}

const (
	DefaultChannelID   = "ForegroundServiceChannel"
	DefaultChannelName = "Foreground Service Channel"
	DefaultID          = 1
	DefaultTitle       = "G45W"
	DefaultText        = "Running in the background."
)

// Channel is the OS-level category a notification is posted under.
// Creating the same channel twice is harmless.
type Channel struct {
	ID         string
	Name       string
	Importance Importance
}

// DefaultChannel returns the channel used for the foreground notification.
func DefaultChannel() Channel {
	return Channel{
		ID:         DefaultChannelID,
		Name:       DefaultChannelName,
		Importance: ImportanceDefault,
	}
}

// Validate checks the channel can be registered.
func (c Channel) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: empty channel id", ErrInvalid)
	}
	if c.Name == "" {
		return fmt.Errorf("%w: channel %s has no name", ErrInvalid, c.ID)
	}
	if _, ok := importanceNames[c.Importance]; !ok {
		return fmt.Errorf("%w: channel %s has importance %d", ErrInvalid, c.ID, int(c.Importance))
	}
	return nil
}

// Notification is the persistent notification attached to a foreground service.
type Notification struct {
	ID        int
	ChannelID string
	Title     string
	Text      string
	Icon      Icon
}

// Default returns the fixed notification: a title, a one-line text and a
// 64x64 solid white icon.
func Default() Notification {
	return Notification{
		ID:        DefaultID,
		ChannelID: DefaultChannelID,
		Title:     DefaultTitle,
		Text:      DefaultText,
		Icon:      DefaultIcon(),
	}
}

// Validate checks the notification can be posted. Android rejects an id of 0
// for foreground notifications.
func (n Notification) Validate() error {
	if n.ID == 0 {
		return fmt.Errorf("%w: notification id must be non-zero", ErrInvalid)
	}
	if n.ChannelID == "" {
		return fmt.Errorf("%w: notification has no channel", ErrInvalid)
	}
	return n.Icon.Validate()
}
