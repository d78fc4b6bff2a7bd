// Package notify delivers fire-and-forget toast events to the user.
package notify

import "log"

type Variant string

const (
	VariantInfo    Variant = "info"
	VariantSuccess Variant = "success"
	VariantNeutral Variant = "neutral"
	VariantWarning Variant = "warning"
	VariantDanger  Variant = "danger"
)

type Event struct {
	Type    string  `json:"type"`
	Variant Variant `json:"variant"`
	Message string  `json:"message"`
}

func Toast(variant Variant, message string) Event {
	return Event{Type: "toast", Variant: variant, Message: message}
}

// Notifier must not block the caller.
type Notifier interface {
	Notify(Event)
}

type NoOp struct{}

func (NoOp) Notify(Event) {}

type Log struct{}

func (Log) Notify(e Event) {
	log.Printf("[%s] %s", e.Variant, e.Message)
}

// Multi fans an event out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(e Event) {
	for _, n := range m {
		n.Notify(e)
	}
}
