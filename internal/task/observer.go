package task

// ChangeType describes what happened to a task.
type ChangeType string

// Change types delivered to observers
const (
	ChangeSubmitted ChangeType = "submitted"
	ChangeProgress  ChangeType = "progress"
	ChangeStatus    ChangeType = "status"
	ChangeEvicted   ChangeType = "evicted"
)

// Change is a notification about a single task.
type Change struct {
	Type ChangeType
	Task Snapshot
}

// Observer receives task changes. Observers may be called while the queue
// holds its lock, so implementations must return quickly and must not call
// back into the queue. Evictions are delivered after the lock is released.
type Observer interface {
	TaskChanged(change Change)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(change Change)

// TaskChanged calls f.
func (f ObserverFunc) TaskChanged(change Change) { f(change) }

type observers []Observer

func (o observers) notify(ct ChangeType, t *Task) {
	if len(o) == 0 {
		return
	}
	o.notifySnapshot(ct, t.Snapshot())
}

func (o observers) notifySnapshot(ct ChangeType, snap Snapshot) {
	c := Change{Type: ct, Task: snap}
	for _, obs := range o {
		obs.TaskChanged(c)
	}
}
