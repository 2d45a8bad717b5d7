package orders

import (
	"context"
	"strings"
)

type actionFunc func(context.Context, Event) error

type actionFactory struct {
	byStatus map[string]actionFunc
}

func newActionFactory(onAssigned, onInTransit, onCompleted, onCancelled actionFunc) *actionFactory {
	return &actionFactory{
		byStatus: map[string]actionFunc{
			"assigned":   onAssigned,
			"created":    onAssigned,
			"in_transit": onInTransit,
			"picked_up":  onInTransit,
			"completed":  onCompleted,
			"delivered":  onCompleted,
			"cancelled":  onCancelled,
			"canceled":   onCancelled,
			"deleted":    onCancelled,
		},
	}
}

// get resolves a status case-insensitively and returns its canonical name.
func (f *actionFactory) get(status string) (actionFunc, string, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	fn, ok := f.byStatus[status]
	return fn, status, ok
}
