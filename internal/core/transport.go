package core

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/nimda/waxmpp/pkg/waerrors"
	"github.com/nimda/waxmpp/pkg/walog"
)

// TransportCallbacks are the events a Transport reports to its owner. All
// callbacks run on the caller's read goroutine; the owner is responsible
// for getting back onto the single logical session thread (the session
// state machine serializes every entry point on its mutex, see session.go).
type TransportCallbacks struct {
	OnConnect func()
	OnData    func([]byte)
	OnError   func(error)
	OnEnd     func()
}

// Transport owns the TLS socket: dialing, a background read loop that
// delivers bytes to OnData, and a write path. It has no protocol knowledge;
// BinaryCodec and SessionStateMachine sit on top of it.
type Transport struct {
	host    string
	port    int
	timeout time.Duration
	tlsCfg  *tls.Config

	mu       sync.Mutex
	conn     net.Conn
	closed   bool
	cbs      TransportCallbacks
	writeBuf [][]byte
}

// NewTransport creates a Transport targeting host:port with the given dial
// timeout. A nil tlsCfg uses Go's default TLS configuration.
func NewTransport(host string, port int, timeout time.Duration, tlsCfg *tls.Config) *Transport {
	return &Transport{host: host, port: port, timeout: timeout, tlsCfg: tlsCfg}
}

// SetCallbacks installs the connect/data/error/end callbacks. Must be
// called before Connect.
func (t *Transport) SetCallbacks(cbs TransportCallbacks) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cbs = cbs
}

// Connect dials the TLS socket and starts the background read loop. The
// OnConnect callback fires synchronously before Connect returns; OnData/
// OnEnd/OnError fire from the read goroutine thereafter.
func (t *Transport) Connect(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", t.host, t.port)
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: t.timeout},
		Config:    t.tlsCfg,
	}

	walog.Trace().Str("address", address).Msg("transport: dialing")
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return waerrors.NewTransportError(fmt.Errorf("dial %s: %w", address, err))
	}

	t.mu.Lock()
	t.conn = conn
	t.closed = false
	cbs := t.cbs
	t.mu.Unlock()

	if cbs.OnConnect != nil {
		cbs.OnConnect()
	}

	go t.readLoop(conn, cbs)
	return nil
}

func (t *Transport) readLoop(conn net.Conn, cbs TransportCallbacks) {
	buf := make([]byte, 65536)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if cbs.OnData != nil {
				cbs.OnData(data)
			}
		}
		if err != nil {
			t.mu.Lock()
			already := t.closed
			t.closed = true
			t.mu.Unlock()
			if already {
				return
			}
			if cbs.OnError != nil {
				cbs.OnError(waerrors.NewTransportError(err))
			}
			if cbs.OnEnd != nil {
				cbs.OnEnd()
			}
			return
		}
	}
}

// Write sends bytes on the socket. Safe to call concurrently with the read
// loop; not safe to call concurrently with itself (the session state
// machine is single-threaded and never does).
func (t *Transport) Write(data []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return waerrors.NewTransportError(fmt.Errorf("write on unconnected transport"))
	}
	_, err := conn.Write(data)
	if err != nil {
		return waerrors.NewTransportError(err)
	}
	return nil
}

// Close closes the underlying socket. Safe to call multiple times.
func (t *Transport) Close() error {
	t.mu.Lock()
	conn := t.conn
	already := t.closed
	t.closed = true
	t.mu.Unlock()
	if conn == nil || already {
		return nil
	}
	if err := conn.Close(); err != nil {
		walog.Trace().Err(err).Msg("transport: error closing connection")
		return err
	}
	return nil
}

// IsClosed reports whether the transport has been closed (by us or by the
// peer).
func (t *Transport) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
