package local

import (
	"context"
	"sort"

	"bgservice/internal/notification"
)

// instance is the service object handed to the lifecycle in OnCreate.
// Its fields are guarded by the owning host's mutex.
type instance struct {
	host         *Host
	destroyed    bool
	foregroundID int
}

func (i *instance) CreateNotificationChannel(_ context.Context, ch notification.Channel) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	h := i.host
	h.mu.Lock()
	defer h.mu.Unlock()

	if i.destroyed {
		return ErrInstanceDestroyed
	}
	h.tray.addChannel(ch)
	return nil
}

func (i *instance) StartForeground(_ context.Context, n notification.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	h := i.host
	h.mu.Lock()
	defer h.mu.Unlock()

	if i.destroyed {
		return ErrInstanceDestroyed
	}
	if err := h.tray.post(n); err != nil {
		return err
	}
	if i.foregroundID != 0 && i.foregroundID != n.ID {
		h.tray.remove(i.foregroundID)
	}
	i.foregroundID = n.ID
	return nil
}

func (i *instance) StopForeground(_ context.Context, removeNotification bool) error {
	h := i.host
	h.mu.Lock()
	defer h.mu.Unlock()

	if i.destroyed {
		return ErrInstanceDestroyed
	}
	if removeNotification && i.foregroundID != 0 {
		h.tray.remove(i.foregroundID)
	}
	i.foregroundID = 0
	return nil
}

// tray records registered channels and currently posted notifications.
type tray struct {
	channels map[string]notification.Channel
	posted   map[int]notification.Notification
}

func newTray() tray {
	return tray{
		channels: make(map[string]notification.Channel),
		posted:   make(map[int]notification.Notification),
	}
}

// addChannel is idempotent; re-registering keeps the first definition's
// importance, which an OS does not let an app change after creation.
func (t tray) addChannel(ch notification.Channel) {
	if existing, ok := t.channels[ch.ID]; ok {
		existing.Name = ch.Name
		t.channels[ch.ID] = existing
		return
	}
	t.channels[ch.ID] = ch
}

func (t tray) post(n notification.Notification) error {
	if _, ok := t.channels[n.ChannelID]; !ok {
		return &MissingChannelError{ChannelID: n.ChannelID}
	}
	t.posted[n.ID] = n
	return nil
}

func (t tray) remove(id int) {
	delete(t.posted, id)
}

// MissingChannelError is returned when a notification names a channel that
// was never created.
type MissingChannelError struct {
	ChannelID string
}

func (e *MissingChannelError) Error() string {
	return "notification channel " + e.ChannelID + " does not exist"
}

// Channels returns the registered channels ordered by id.
func (h *Host) Channels() []notification.Channel {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]notification.Channel, 0, len(h.tray.channels))
	for _, ch := range h.tray.channels {
		out = append(out, ch)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// Posted returns the notifications currently shown, ordered by id.
func (h *Host) Posted() []notification.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]notification.Notification, 0, len(h.tray.posted))
	for _, n := range h.tray.posted {
		out = append(out, n)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}
