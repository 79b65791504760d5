package syncer

import (
	"fmt"

	"github.com/ralt/reposyncd/internal/models"
	"github.com/ralt/reposyncd/internal/pkgref"
	"github.com/ralt/reposyncd/internal/watcher"
)

// DefaultSentinel is the filename that triggers a commit
const DefaultSentinel = "DONE"

// ActionKind is what the sync loop does with an event
type ActionKind int

const (
	ActionIgnore ActionKind = iota
	ActionAdd
	ActionRemove
	ActionCommit
)

// String returns the string representation of ActionKind
func (k ActionKind) String() string {
	switch k {
	case ActionAdd:
		return "add"
	case ActionRemove:
		return "remove"
	case ActionCommit:
		return "commit"
	default:
		return "ignore"
	}
}

// Classify maps an event to the action it calls for. Unhandled event
// kinds yield ActionIgnore and an ErrUnhandledEvent error.
func Classify(ev watcher.Event, sentinel string) (ActionKind, error) {
	switch ev.Kind {
	case watcher.CloseWrite, watcher.MovedTo:
		if ev.Name == sentinel {
			return ActionCommit, nil
		}
		return ActionAdd, nil
	case watcher.Delete, watcher.MovedFrom:
		return ActionRemove, nil
	default:
		return ActionIgnore, &models.Error{
			Type:    models.ErrUnhandledEvent,
			Package: ev.Name,
			Err:     fmt.Errorf("unhandled event kind %s", ev.Kind),
		}
	}
}

// Decision is a classified and parsed event, ready to be applied
type Decision struct {
	Event  watcher.Event
	Action ActionKind
	Ref    pkgref.Ref

	// Err explains why the event is ignored
	Err error

	// SourceErr is set instead of Event for an error reported by the
	// event source
	SourceErr error
}

// Decide classifies ev and, for add and remove actions, parses the
// filename. Events that are not about package artifacts are turned into
// ActionIgnore. Decide is pure and safe to call concurrently.
func Decide(ev watcher.Event, sentinel string) Decision {
	action, err := Classify(ev, sentinel)
	d := Decision{Event: ev, Action: action, Err: err}
	if action != ActionAdd && action != ActionRemove {
		return d
	}

	ref, err := pkgref.Parse(ev.Name)
	if err != nil {
		d.Action = ActionIgnore
		d.Err = &models.Error{Type: models.ErrPackageParse, Err: err}
		return d
	}
	d.Ref = ref
	return d
}
