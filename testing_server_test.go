package libemit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/require"
)

const testTimeout = 2 * time.Second

var upgrader = websocket.Upgrader{}

// newTestServer upgrades every request and hands the server side of the connection to
// handle. The connection is closed when handle returns.
func newTestServer(t *testing.T, handle func(c *websocket.Conn)) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		handle(c)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func echo(c *websocket.Conn) {
	for {
		mt, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		if err := c.WriteMessage(mt, data); err != nil {
			return
		}
	}
}

func testDialParams(t *testing.T, srv *httptest.Server) DialParamsGetter {
	t.Helper()

	getter, err := ParseDialParams("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	return getter
}

// collect forwards the first argument of every event notification to a channel.
func collect[T any](t *testing.T, s *ConnStatus, event ConnEvent) <-chan T {
	t.Helper()

	ch := make(chan T, 64)
	require.NoError(t, s.On(event, &forwarder[T]{ch: ch}, nil))
	return ch
}

type forwarder[T any] struct {
	ch chan T
}

func (f *forwarder[T]) OnEvent(_ any, args ...any) {
	v, ok := args[0].(T)
	if !ok {
		return
	}
	select {
	case f.ch <- v:
	default:
	}
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for event")
	}
	var zero T
	return zero
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()

	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for termination")
	}
}
