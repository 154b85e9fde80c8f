package libemit

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func namedListener(any, ...any) {}

func otherNamedListener(any, ...any) {}

type handler struct {
	name string
	seen *[]string
}

func (h *handler) Handle(any, ...any) { *h.seen = append(*h.seen, h.name) }

func TestListenerFunc_OnEvent(t *testing.T) {
	var gotReceiver any
	var gotArgs []any
	l := ListenerFunc(func(receiver any, args ...any) {
		gotReceiver, gotArgs = receiver, args
	})

	l.OnEvent("ctx", 1, "two")

	assert.Equal(t, "ctx", gotReceiver)
	assert.Equal(t, []any{1, "two"}, gotArgs)
}

func TestSameListener(t *testing.T) {
	j := &journal{}
	a, b := j.spy("a"), j.spy("a")

	var seen []string
	ha, hb := &handler{name: "a", seen: &seen}, &handler{name: "b", seen: &seen}
	boundA := ListenerFunc(ha.Handle)

	var closures []ListenerFunc
	for i := 0; i < 2; i++ {
		closures = append(closures, func(any, ...any) { seen = append(seen, fmt.Sprint(i)) })
	}

	tests := []struct {
		name string
		x, y Listener
		want bool
	}{
		{name: "same pointer", x: a, y: a, want: true},
		{name: "equal but distinct pointers", x: a, y: b, want: false},
		{name: "same func", x: ListenerFunc(namedListener), y: ListenerFunc(namedListener), want: true},
		{name: "different funcs", x: ListenerFunc(namedListener), y: ListenerFunc(otherNamedListener), want: false},
		{name: "same method value", x: boundA, y: boundA, want: true},
		{name: "method values on different receivers", x: ListenerFunc(ha.Handle), y: ListenerFunc(hb.Handle), want: false},
		{name: "method value evaluated twice", x: boundA, y: ListenerFunc(ha.Handle), want: false},
		{name: "same closure", x: closures[0], y: closures[0], want: true},
		{name: "closures from one literal", x: closures[0], y: closures[1], want: false},
		{name: "func against pointer", x: ListenerFunc(namedListener), y: a, want: false},
		{name: "nil against listener", x: nil, y: a, want: false},
		{name: "both nil", x: nil, y: nil, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sameListener(tt.x, tt.y))
		})
	}
}

func TestSameReceiver(t *testing.T) {
	ptr := &struct{ n int }{1}
	m := map[string]int{"a": 1}
	s := []int{1, 2}

	tests := []struct {
		name      string
		want, got any
		match     bool
	}{
		{name: "nil filter matches value", want: nil, got: "ctx", match: true},
		{name: "nil filter matches nil", want: nil, got: nil, match: true},
		{name: "filter against nil entry", want: "ctx", got: nil, match: false},
		{name: "equal strings", want: "ctx", got: "ctx", match: true},
		{name: "different strings", want: "ctx", got: "other", match: false},
		{name: "different types", want: 1, got: int64(1), match: false},
		{name: "same pointer", want: ptr, got: ptr, match: true},
		{name: "distinct pointers", want: ptr, got: &struct{ n int }{1}, match: false},
		{name: "same map", want: m, got: m, match: true},
		{name: "distinct maps", want: m, got: map[string]int{"a": 1}, match: false},
		{name: "same slice", want: s, got: s, match: true},
		{name: "slice prefix", want: s[:1], got: s, match: false},
		{name: "struct holding func", want: struct{ f any }{f: namedListener}, got: struct{ f any }{f: namedListener}, match: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, sameReceiver(tt.want, tt.got))
		})
	}
}
