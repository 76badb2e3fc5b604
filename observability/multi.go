package observability

import "context"

// NoOpObserver discards all events.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(ctx context.Context, event Event) {}

// MultiObserver delivers each event to several observers in order. An
// observer that panics is skipped for that event; the rest still receive
// it.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver combines observers. Nil and NoOpObserver entries are
// dropped and nested MultiObservers are flattened.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	m := &MultiObserver{}
	for _, obs := range observers {
		m.add(obs)
	}
	return m
}

func (m *MultiObserver) add(obs Observer) {
	switch o := obs.(type) {
	case nil, NoOpObserver:
	case *MultiObserver:
		m.observers = append(m.observers, o.observers...)
	default:
		m.observers = append(m.observers, obs)
	}
}

// Len reports how many observers receive events.
func (m *MultiObserver) Len() int {
	return len(m.observers)
}

func (m *MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m.observers {
		deliver(ctx, obs, event)
	}
}

func deliver(ctx context.Context, obs Observer, event Event) {
	defer func() { _ = recover() }()
	obs.OnEvent(ctx, event)
}
