package session

import (
	"github.com/louisbranch/initiative/internal/services/encounter/domain/deathsave"
)

// Kind classifies a notification.
type Kind string

const (
	KindConcentration Kind = Kind(deathsave.NotificationConcentration)
	KindDowned        Kind = Kind(deathsave.NotificationDowned)
	KindDead          Kind = Kind(deathsave.NotificationDead)
	KindStable        Kind = Kind(deathsave.NotificationStable)
	KindUpdateFailed  Kind = "update_failed"
	KindFetchFailed   Kind = "fetch_failed"
)

// Notification is a user-facing event raised by an action.
type Notification struct {
	SheetID       string
	Kind          Kind
	CombatantID   string
	CombatantName string
	Err           error
}

// Notifier receives notifications in the order they are raised.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

type discardNotifier struct{}

func (discardNotifier) Notify(Notification) {}
