package libemit

import (
	"sync"

	"github.com/pkg/errors"
)

type (
	// InitialEventProducer is implemented by the type that owns an Emitter. When a listener
	// subscribes to event, InitialEvent may return the arguments describing the current
	// state so the new listener is told about it right away. It must not have side effects
	// and must not subscribe or unsubscribe listeners.
	InitialEventProducer[K comparable] interface {
		InitialEvent(event K) (args []any, ok bool)
	}

	// NoInitialEvent is an InitialEventProducer that never replays anything.
	NoInitialEvent[K comparable] struct{}

	subscription struct {
		listener Listener
		receiver any
	}

	// Emitter maps a fixed set of event names (of type K) to ordered lists of listeners and
	// dispatches notifications to them synchronously.
	//
	// Emitter is meant to be embedded by a type that implements InitialEventProducer and calls
	// Trigger from its own logic; external code subscribes through On and Off.
	Emitter[K comparable] struct {
		events    []K
		allowed   map[K]struct{}
		producer  InitialEventProducer[K]
		listeners map[K][]subscription
		lock      sync.RWMutex
		logger    Logger
	}
)

func (NoInitialEvent[K]) InitialEvent(K) ([]any, bool) { return nil, false }

// New creates an Emitter accepting the given event names. The producer is consulted on every
// subscription for state to replay. It fails with ErrInvalidConfiguration if no event names
// are given or producer is nil.
func New[K comparable](producer InitialEventProducer[K], events []K, opts ...Option) (*Emitter[K], error) {
	if len(events) == 0 {
		return nil, errors.Wrap(ErrInvalidConfiguration, "at least one event type is required")
	}
	if producer == nil {
		return nil, errors.Wrap(ErrInvalidConfiguration, "initial event producer cannot be nil")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	e := &Emitter[K]{
		events:    make([]K, 0, len(events)),
		allowed:   make(map[K]struct{}, len(events)),
		producer:  producer,
		listeners: make(map[K][]subscription),
		logger:    o.logger.WithField("type", "emitter"),
	}

	for _, event := range events {
		if _, ok := e.allowed[event]; ok {
			continue
		}
		e.allowed[event] = struct{}{}
		e.events = append(e.events, event)
	}

	return e, nil
}

// MustNew is like New but panics on error. Suited for emitters built from constant event lists.
func MustNew[K comparable](producer InitialEventProducer[K], events []K, opts ...Option) *Emitter[K] {
	e, err := New(producer, events, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// On appends listener to the subscribers of event. If the producer has an initial event for
// it, listener is invoked once with receiver and those arguments before On returns.
func (e *Emitter[K]) On(event K, listener Listener, receiver any) error {
	if err := e.validate(event); err != nil {
		return err
	}
	if listener == nil {
		return ErrInvalidListener
	}

	e.lock.Lock()
	e.listeners[event] = append(e.listeners[event], subscription{listener: listener, receiver: receiver})
	count := len(e.listeners[event])
	e.lock.Unlock()

	e.logger.Debugf("listener added to %v (%d subscribed)", event, count)

	if args, ok := e.producer.InitialEvent(event); ok {
		listener.OnEvent(receiver, args...)
	}

	return nil
}

// Off removes the first subscription of event whose listener is listener and whose receiver
// matches receiver. A nil receiver matches any. Removing nothing is not an error.
func (e *Emitter[K]) Off(event K, listener Listener, receiver any) error {
	if err := e.validate(event); err != nil {
		return err
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	subs := e.listeners[event]
	for i, sub := range subs {
		if !sameListener(listener, sub.listener) || !sameReceiver(receiver, sub.receiver) {
			continue
		}
		// Full slice expression forces a copy so in-flight snapshots keep their entries.
		e.listeners[event] = append(subs[:i:i], subs[i+1:]...)
		e.logger.Debugf("listener removed from %v (%d subscribed)", event, len(subs)-1)
		return nil
	}

	return nil
}

// Trigger invokes, in subscription order, every listener subscribed to event when Trigger is
// called. Subscriptions changed by the listeners themselves take effect on the next Trigger.
//
// Trigger does not check event against the allowed names: an event without subscribers is a
// no-op. A panicking listener aborts the remaining dispatch and the panic reaches the caller.
func (e *Emitter[K]) Trigger(event K, args ...any) {
	e.lock.RLock()
	subs, found := e.listeners[event]
	if !found || len(subs) == 0 {
		e.lock.RUnlock()
		return
	}
	snapshot := make([]subscription, len(subs))
	copy(snapshot, subs)
	e.lock.RUnlock()

	for _, sub := range snapshot {
		sub.listener.OnEvent(sub.receiver, args...)
	}
}

// Events returns the allowed event names in construction order.
func (e *Emitter[K]) Events() []K {
	events := make([]K, len(e.events))
	copy(events, e.events)
	return events
}

// Allowed reports whether event belongs to the emitter's allowed names.
func (e *Emitter[K]) Allowed(event K) bool {
	_, ok := e.allowed[event]
	return ok
}

// ListenerCount returns the number of subscriptions currently registered for event.
func (e *Emitter[K]) ListenerCount(event K) int {
	e.lock.RLock()
	defer e.lock.RUnlock()

	return len(e.listeners[event])
}

func (e *Emitter[K]) validate(event K) error {
	if e.Allowed(event) {
		return nil
	}
	return newUnknownEventTypeError(event, e.events)
}
