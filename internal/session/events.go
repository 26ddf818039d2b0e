package session

// EventType names a session lifecycle transition.
type EventType string

const (
	EventLogin     EventType = "login"
	EventProfile   EventType = "profile"
	EventRefreshed EventType = "refreshed"
	EventExpired   EventType = "expired"
	EventLogout    EventType = "logout"
)

// Event is delivered to subscribers after the state change it reports.
// Session is a snapshot taken at that moment; it is nil once the session
// has been purged.
type Event struct {
	Type    EventType
	Session *Session
	// Username is the user the event concerns, when known.
	Username string
}

// Subscribe registers fn for every lifecycle event and returns a function
// that removes it. Handlers run synchronously on the goroutine that caused
// the change and must not call back into the manager's mutating methods.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *Manager) emit(ev Event) {
	m.subMu.Lock()
	handlers := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		handlers = append(handlers, fn)
	}
	m.subMu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
}
