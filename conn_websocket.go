package libemit

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const writeWait = time.Second

type (
	// DialErrorAdapter turns a failed handshake into the error returned by Open.
	DialErrorAdapter func(resp *http.Response, err error) error

	// ConnOption configures a WsConn.
	ConnOption func(*WsConn)

	// WsConn is a single websocket connection. Its lifecycle and every frame it receives are
	// published through a ConnStatus.
	WsConn struct {
		id           string
		params       DialParamsGetter
		dialer       *websocket.Dialer
		dialErr      DialErrorAdapter
		status       *ConnStatus
		logger       Logger
		pingInterval time.Duration

		connMu sync.Mutex
		conn   *websocket.Conn

		opened      atomic.Bool
		closing     atomic.Bool
		send        chan Message
		closeC      chan struct{}
		closeOnce   sync.Once
		closeReason error
	}
)

func WithConnLogger(logger Logger) ConnOption {
	return func(w *WsConn) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithDialer(dialer *websocket.Dialer) ConnOption {
	return func(w *WsConn) {
		if dialer != nil {
			w.dialer = dialer
		}
	}
}

func WithDialErrorAdapter(adapter DialErrorAdapter) ConnOption {
	return func(w *WsConn) { w.dialErr = adapter }
}

// WithStatus makes the connection report to an existing ConnStatus instead of its own.
func WithStatus(status *ConnStatus) ConnOption {
	return func(w *WsConn) {
		if status != nil {
			w.status = status
		}
	}
}

// WithPingInterval enables active keep-alive: a ping frame is written every interval.
func WithPingInterval(interval time.Duration) ConnOption {
	return func(w *WsConn) { w.pingInterval = interval }
}

// WithSendBuffer sets how many outgoing messages may be queued before Send blocks.
func WithSendBuffer(size int) ConnOption {
	return func(w *WsConn) {
		if size >= 0 {
			w.send = make(chan Message, size)
		}
	}
}

func NewWsConn(params DialParamsGetter, opts ...ConnOption) *WsConn {
	w := &WsConn{
		id:     uuid.NewString(),
		params: params,
		dialer: websocket.DefaultDialer,
		logger: NoopLogger(),
		send:   make(chan Message, 32),
		closeC: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.status == nil {
		w.status = NewConnStatus(WithLogger(w.logger))
	}
	w.logger = w.logger.WithField("net", "ws_conn").WithField("conn_id", w.id)

	return w
}

func (w *WsConn) ID() string { return w.id }

func (w *WsConn) Status() *ConnStatus { return w.status }

// Done is closed once the connection has terminated.
func (w *WsConn) Done() <-chan struct{} { return w.closeC }

// Err returns why the connection terminated: nil after Close, ErrTerminated when the context
// given to Open ended, or an error wrapping ErrConnectionClosed otherwise.
func (w *WsConn) Err() error {
	select {
	case <-w.closeC:
		return w.closeReason
	default:
		return nil
	}
}

// Open dials the server and starts the read and write routines. ctx bounds both the dial and
// the lifetime of the connection.
func (w *WsConn) Open(ctx context.Context) error {
	select {
	case <-w.closeC:
		return ErrConnectionClosed
	default:
	}
	if !w.opened.CompareAndSwap(false, true) {
		return ErrAlreadyOpened
	}

	p, err := w.params(ctx)
	if err != nil {
		w.logger.Errorf("cannot get dial params: %s", err)
		return errors.Wrap(ErrCannotConnect, err.Error())
	}

	conn, resp, err := w.dialer.DialContext(ctx, p.URL.String(), p.Header)
	if err = w.handleDialError(resp, err); err != nil {
		w.logger.Errorf("connection err to %s: %s", p.URL.String(), err)
		if conn != nil {
			_ = conn.Close()
		}
		return err
	}
	if conn == nil {
		return ErrCannotConnect
	}

	w.logger.Debugf("success opening connection to %s", p.URL.String())

	conn.SetPingHandler(func(appData string) error {
		w.logger.Debugln("<= [PING]")
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		w.status.received(NewPingMessage([]byte(appData)))
		if err != nil && !isTemporary(err) {
			return err
		}
		return nil
	})

	conn.SetPongHandler(func(appData string) error {
		w.logger.Debugln("<= [PONG]")
		w.status.received(NewPongMessage([]byte(appData)))
		return nil
	})

	conn.SetCloseHandler(func(code int, text string) error {
		w.logger.Debugln("<= [CLOSE]")
		w.status.received(NewCloseFrame(code, []byte(text)))
		reply := websocket.FormatCloseMessage(code, "")
		_ = conn.WriteControl(websocket.CloseMessage, reply, time.Now().Add(writeWait))
		return nil
	})

	w.connMu.Lock()
	w.conn = conn
	w.connMu.Unlock()

	// connect listeners have returned before the routines can report a close
	w.status.connected(w.id)

	go w.read()
	go w.write(ctx)

	return nil
}

// Send queues m to be written. It fails with ErrConnectionClosed once the connection has
// terminated. Messages sent before Open are written as soon as the connection is up.
func (w *WsConn) Send(m Message) error {
	select {
	case <-w.closeC:
		return ErrConnectionClosed
	default:
	}

	select {
	case w.send <- m:
		return nil
	case <-w.closeC:
		return ErrConnectionClosed
	}
}

// Close sends a normal closure frame and releases the connection. Safe to call many times.
func (w *WsConn) Close() {
	w.closing.Store(true)

	w.connMu.Lock()
	conn := w.conn
	w.connMu.Unlock()

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	}

	w.terminate(nil)
}

func (w *WsConn) read() {
	for {
		messageType, bts, err := w.conn.ReadMessage()
		if err != nil {
			if w.closing.Load() {
				w.terminate(nil)
				return
			}

			select {
			case <-w.closeC:
				// terminated from our side, the read error is the consequence
			default:
				w.logger.Errorf("error occurred on websocket read: %s", err)
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					w.status.failed(err)
				}
			}
			w.terminate(errors.Wrap(ErrConnectionClosed, "error occurred on websocket read: "+err.Error()))
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			w.logger.Debugln("<= [BIN]")
			w.status.received(NewBinaryMessage(bts))
		default:
			w.logger.Debugf("<= [DATA] %s", bts)
			w.status.received(NewDataMessage(bts))
		}
	}
}

func (w *WsConn) write(ctx context.Context) {
	var pingC <-chan time.Time
	if w.pingInterval > 0 {
		ticker := time.NewTicker(w.pingInterval)
		defer ticker.Stop()
		pingC = ticker.C
	}

	for {
		select {
		case <-w.closeC:
			return
		case <-ctx.Done():
			w.terminate(ErrTerminated)
			return
		case <-pingC:
			if err := w.writeMessage(NewPingMessage(nil)); err != nil {
				w.failWrite(err)
				return
			}
		case msg := <-w.send:
			if err := w.writeMessage(msg); err != nil {
				w.failWrite(err)
				return
			}
		}
	}
}

func (w *WsConn) writeMessage(msg Message) error {
	deadline := time.Now().Add(writeWait)
	_ = w.conn.SetWriteDeadline(deadline)

	switch msg.Type() {
	case PingMessage:
		w.logger.Debugln("=> [PING]")
		err := w.conn.WriteControl(websocket.PingMessage, msg.Data(), deadline)
		if isTemporary(err) {
			return nil
		}
		return err
	case PongMessage:
		w.logger.Debugln("=> [PONG]")
		return w.conn.WriteControl(websocket.PongMessage, msg.Data(), deadline)
	case CloseMessage:
		w.logger.Debugln("=> [CLOSE]")
		code := websocket.CloseNormalClosure
		if frame, ok := msg.(CloseFrame); ok {
			code = frame.Code
		}
		return w.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, string(msg.Data())), deadline)
	case BinaryMessage:
		w.logger.Debugln("=> [BIN]")
		return w.conn.WriteMessage(websocket.BinaryMessage, msg.Data())
	default:
		w.logger.Debugf("=> [DATA] %s", msg.Data())
		return w.conn.WriteMessage(websocket.TextMessage, msg.Data())
	}
}

func (w *WsConn) failWrite(err error) {
	if w.closing.Load() {
		w.terminate(nil)
		return
	}

	w.logger.Errorf("error occurred on websocket write: %s", err)
	w.status.failed(err)
	if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
		w.terminate(ErrConnectionClosed)
		return
	}
	w.terminate(errors.Wrap(ErrConnectionClosed, err.Error()))
}

// terminate releases the connection once and reports it closed. The close event is triggered
// outside the once so listeners may call Close again.
func (w *WsConn) terminate(reason error) {
	first := false
	w.closeOnce.Do(func() {
		first = true
		w.closeReason = reason
		close(w.closeC)

		w.connMu.Lock()
		if w.conn != nil {
			_ = w.conn.Close()
		}
		w.connMu.Unlock()
	})

	if first {
		w.logger.Infof("connection closed: %v", reason)
		w.status.closed(w.id, reason)
	}
}

func (w *WsConn) handleDialError(resp *http.Response, err error) error {
	if w.dialErr != nil {
		return w.dialErr(resp, err)
	}

	// 1. HTTP errors first
	var msg string
	if resp != nil && resp.Body != nil {
		if bts, readErr := io.ReadAll(resp.Body); readErr == nil {
			msg = string(bts)
		}
		_ = resp.Body.Close()
	}
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		return errors.Wrap(ErrRateLimit, msg)
	}

	// 2. Network errors
	if err != nil {
		return errors.Wrap(ErrCannotConnect, err.Error())
	}

	return nil
}

func isTemporary(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
