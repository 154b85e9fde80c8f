// Package libemit provides a synchronous event emitter with a fixed set of event names and
// subscribe-time replay of current state, plus websocket connection types that publish their
// lifecycle through it.
//
// A type owning an Emitter embeds it and passes itself as the InitialEventProducer:
//
//	type thermostat struct {
//		*libemit.Emitter[string]
//		celsius float64
//	}
//
//	func (t *thermostat) InitialEvent(event string) ([]any, bool) {
//		return []any{t.celsius}, event == "temperature"
//	}
//
// Listeners subscribed with On are told the current temperature right away and every change
// afterwards, in the order they subscribed.
package libemit
