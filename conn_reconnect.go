package libemit

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

type (
	// BackoffFunc returns how long to wait before the given dial attempt. attempts starts at
	// zero for the first dial after a healthy connection.
	BackoffFunc func(attempts int) time.Duration

	ReconnectOption func(*ReconnectingConn)

	// ReconnectingConn keeps a websocket connection open, dialling again with backoff whenever
	// it drops. Every underlying WsConn reports to the same ConnStatus, so listeners see
	// connect/close pairs for each connection plus an EventReconnect after every re-dial.
	ReconnectingConn struct {
		params           DialParamsGetter
		connOpts         []ConnOption
		status           *ConnStatus
		logger           Logger
		backoff          BackoffFunc
		healthyThreshold time.Duration
		reopenInterval   time.Duration

		mu     sync.RWMutex
		inner  *WsConn
		closed bool

		opened    atomic.Bool
		closeC    chan struct{}
		closeOnce sync.Once
		done      chan struct{}
		doneOnce  sync.Once
	}
)

func WithBackoff(backoff BackoffFunc) ReconnectOption {
	return func(r *ReconnectingConn) {
		if backoff != nil {
			r.backoff = backoff
		}
	}
}

// WithHealthyThreshold sets how long a connection must have lived for the backoff attempts to
// be reset when it drops.
func WithHealthyThreshold(d time.Duration) ReconnectOption {
	return func(r *ReconnectingConn) { r.healthyThreshold = d }
}

// WithReopenInterval replaces the connection every interval even if it is healthy. The new
// connection is opened before the old one is closed, so duplicated data is preferred over
// missing data.
func WithReopenInterval(interval time.Duration) ReconnectOption {
	return func(r *ReconnectingConn) { r.reopenInterval = interval }
}

func WithReconnectLogger(logger Logger) ReconnectOption {
	return func(r *ReconnectingConn) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithConnOptions is applied to every underlying WsConn.
func WithConnOptions(opts ...ConnOption) ReconnectOption {
	return func(r *ReconnectingConn) { r.connOpts = append(r.connOpts, opts...) }
}

func NewReconnectingConn(params DialParamsGetter, opts ...ReconnectOption) *ReconnectingConn {
	r := &ReconnectingConn{
		params:           params,
		logger:           NoopLogger(),
		backoff:          ExponentialBackoffSeconds,
		healthyThreshold: time.Minute,
		closeC:           make(chan struct{}),
		done:             make(chan struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.logger = r.logger.WithField("type", "conn_reconnect_exp_backoff")
	r.status = NewConnStatus(WithLogger(r.logger))

	return r
}

func (r *ReconnectingConn) Status() *ConnStatus { return r.status }

// Done is closed once the reconnect loop has stopped, after Close, when the context given
// to Open ends or when Open fails.
func (r *ReconnectingConn) Done() <-chan struct{} { return r.done }

// Open dials the first connection synchronously, retrying with backoff until it succeeds,
// the context ends or Close is called. Then it keeps the connection alive in background.
// A ReconnectingConn can be opened only once.
func (r *ReconnectingConn) Open(ctx context.Context) error {
	select {
	case <-r.closeC:
		return ErrTerminated
	default:
	}
	if !r.opened.CompareAndSwap(false, true) {
		return ErrAlreadyOpened
	}

	conn, _, err := r.dial(ctx, 0)
	if err != nil {
		r.stop()
		return err
	}
	if !r.setInner(conn) {
		r.stop()
		return ErrConnectionClosed
	}

	go r.run(ctx, conn)

	return nil
}

// Send writes m over the current connection. It fails with ErrConnectionClosed while a new
// connection is being dialled.
func (r *ReconnectingConn) Send(m Message) error {
	// TODO: buffer messages sent while reconnecting instead of failing them.
	r.mu.RLock()
	inner := r.inner
	r.mu.RUnlock()

	if inner == nil {
		return ErrConnectionClosed
	}
	return inner.Send(m)
}

func (r *ReconnectingConn) Close() {
	r.closeOnce.Do(func() {
		close(r.closeC)
	})

	r.mu.Lock()
	r.closed = true
	inner := r.inner
	r.mu.Unlock()

	if inner != nil {
		inner.Close()
	}

	// nothing else will close done if Open was never called
	if r.opened.CompareAndSwap(false, true) {
		r.stop()
	}
}

func (r *ReconnectingConn) stop() {
	r.doneOnce.Do(func() { close(r.done) })
}

func (r *ReconnectingConn) run(ctx context.Context, conn *WsConn) {
	defer r.stop()

	var (
		attempts = 0
		then     = time.Now()
		reopenC  <-chan time.Time
	)

	if r.reopenInterval > 0 {
		ticker := time.NewTicker(r.reopenInterval)
		defer ticker.Stop()
		reopenC = ticker.C
	}

	for {
		select {
		case <-reopenC:
			r.logger.Infof("reopening connection %s due to reopen interval", conn.ID())

			next, n, err := r.dial(ctx, 0)
			if err != nil {
				return
			}
			prev := conn
			if !r.setInner(next) {
				return
			}

			attempts = 0
			conn = next
			then = time.Now()

			prev.Close()
			r.status.reconnected(conn.ID(), n)
		case <-ctx.Done():
			// conn was opened with ctx and terminates on its own with ErrTerminated
			<-conn.Done()
			return
		case <-r.closeC:
			return
		case <-conn.Done():
			if ctx.Err() != nil || r.isClosed() {
				return
			}

			if time.Since(then) > r.healthyThreshold {
				// The connection was healthy, it most likely died for natural reasons.
				attempts = 0
			}

			ttw := r.backoff(attempts)
			r.logger.Infof("retrying to connect after %s due to %v", ttw, conn.Err())

			next, n, err := r.dial(ctx, attempts)
			if err != nil {
				return
			}
			if !r.setInner(next) {
				return
			}

			attempts = n
			conn = next
			then = time.Now()

			r.status.reconnected(conn.ID(), attempts)
		}
	}
}

// dial opens a new connection, waiting backoff(attempts) before each try. It returns the number
// of attempts made so far.
func (r *ReconnectingConn) dial(ctx context.Context, attempts int) (*WsConn, int, error) {
	opts := append([]ConnOption{WithConnLogger(r.logger)}, r.connOpts...)
	opts = append(opts, WithStatus(r.status))

	for {
		if err := r.wait(ctx, r.backoff(attempts)); err != nil {
			return nil, attempts, err
		}
		attempts++

		conn := NewWsConn(r.params, opts...)
		if err := conn.Open(ctx); err != nil {
			r.logger.Infof("cannot connect (attempt %d): %s", attempts, err)
			r.status.failed(err)
			continue
		}

		return conn, attempts, nil
	}
}

func (r *ReconnectingConn) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.closeC:
			return ErrTerminated
		default:
			return nil
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.closeC:
		return ErrTerminated
	case <-timer.C:
		return nil
	}
}

// setInner swaps the active connection. It closes conn and reports false if Close already ran.
func (r *ReconnectingConn) setInner(conn *WsConn) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.Close()
		return false
	}
	r.inner = conn
	r.mu.Unlock()
	return true
}

func (r *ReconnectingConn) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func ExponentialBackoff(attempts int) float64 {
	return (math.Pow(2.0, float64(attempts)) - 1) / 2
}

func ExponentialBackoffSeconds(attempts int) time.Duration {
	return time.Duration(ExponentialBackoff(attempts) * float64(time.Second))
}
