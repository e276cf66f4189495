package persistence

import "time"

// newEvent starts an event of eventType stamped with the current time.
func newEvent(eventType PersistenceEventType, operation, collection string) PersistenceEvent {
	ev := PersistenceEvent{
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
		Operation: operation,
	}
	if collection != "" {
		ev.Collection = &collection
	}
	return ev
}

// since records the time elapsed from start, in milliseconds.
func (ev PersistenceEvent) since(start time.Time) PersistenceEvent {
	d := time.Since(start).Milliseconds()
	ev.Duration = &d
	return ev
}

// failed records err on the event.
func (ev PersistenceEvent) failed(err error) PersistenceEvent {
	if err != nil {
		msg := err.Error()
		ev.Error = &msg
	}
	return ev
}
