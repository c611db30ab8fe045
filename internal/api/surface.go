// Package api implements ApiSurface, the single entry point application
// code uses to drive a session: sending messages and media, managing
// groups, and querying presence/status, on top of the lower-level
// SessionStateMachine.
package api

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nimda/waxmpp/internal/core"
	"github.com/nimda/waxmpp/internal/encryption"
	"github.com/nimda/waxmpp/internal/interfaces"
	"github.com/nimda/waxmpp/pkg/waerrors"
)

// defaultRequestTimeout bounds how long a synchronous ApiSurface call waits
// for its iq response before giving up.
const defaultRequestTimeout = 25 * time.Second

// ApiSurface is the client's public API: one struct wrapping a connected
// SessionStateMachine plus whatever media/encryption backends were wired
// in (§4.9).
type ApiSurface struct {
	session *core.SessionStateMachine
	media   interfaces.MediaStore
	thumb   interfaces.Thumbnailer
	bridge  *encryption.Bridge
	metrics interfaces.Metrics
}

// NewApiSurface builds an ApiSurface over an already-constructed session.
// media and thumb may be nil if the caller never sends media.
func NewApiSurface(session *core.SessionStateMachine, media interfaces.MediaStore, thumb interfaces.Thumbnailer) *ApiSurface {
	a := &ApiSurface{session: session, media: media, thumb: thumb, metrics: interfaces.NoopMetrics{}}
	a.wireMediaResume()
	return a
}

// SetMetrics wires a Metrics backend for BatchSendMedia's upload pool.
func (a *ApiSurface) SetMetrics(m interfaces.Metrics) {
	a.metrics = m
}

// SetEncryptionBridge wires the Signal/Axolotl bridge in, enabling
// SendEncryptedText. Without it, SendEncryptedText returns an error.
func (a *ApiSurface) SetEncryptionBridge(b *encryption.Bridge) {
	a.bridge = b
	a.session.SetEncryptionHandler(b)
}

// Connect opens the underlying transport and begins the handshake.
func (a *ApiSurface) Connect(ctx context.Context) error {
	return a.session.Connect(ctx)
}

// Close disconnects deliberately.
func (a *ApiSurface) Close() error {
	return a.session.Close()
}

// OnEvent installs the handler that receives every session event.
func (a *ApiSurface) OnEvent(h core.EventHandler) {
	a.session.OnEvent(h)
}

// requestIQ sends n, tracked by id, and blocks for its result or timeout.
func (a *ApiSurface) requestIQ(n *core.Node, timeout time.Duration) (*core.Node, error) {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	id := n.AttrOr("id", "")
	if id == "" {
		id = a.session.NextMessageId("iq")
		n.SetAttr("id", id)
	}

	ch := make(chan struct {
		node *core.Node
		err  error
	}, 1)
	if err := a.session.SendIQ(n, func(node *core.Node, err error) {
		ch <- struct {
			node *core.Node
			err  error
		}{node, err}
	}); err != nil {
		return nil, err
	}

	select {
	case res := <-ch:
		return res.node, res.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("api: request %s timed out", id)
	}
}

func serverJID() string { return "s.whatsapp.net" }

var errNoEncryptionBridge = fmt.Errorf("api: no encryption bridge wired")

// wrapRequestError turns a node-shaped iq error into a waerrors.RequestError
// with whatever code/text the server supplied, falling back to a generic
// message when the error child is missing.
func wrapRequestError(n *core.Node) error {
	if errNode := n.Child("error"); errNode != nil {
		code, _ := strconv.Atoi(errNode.AttrOr("code", "0"))
		return waerrors.NewRequestError(code, errNode.AttrOr("text", errNode.Tag))
	}
	return waerrors.NewRequestError(0, "unknown error")
}
