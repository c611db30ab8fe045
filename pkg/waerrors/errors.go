// Package waerrors defines the typed error kinds used throughout the
// client, one Go type per kind in the error-handling design: ProtocolError
// and MacError are fatal to the stream, AuthError is fatal to a login
// attempt, RequestError/MediaError/EncryptionError are non-fatal and
// surfaced to a caller or event, and TransportError triggers the
// reconnect policy.
package waerrors

import "fmt"

// ProtocolError wraps a malformed frame, unknown token, or length mismatch.
// Always fatal to the stream.
type ProtocolError struct {
	Underlying error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %v", e.Underlying)
}

func (e *ProtocolError) Unwrap() error { return e.Underlying }

func NewProtocolError(err error) *ProtocolError {
	return &ProtocolError{Underlying: err}
}

// MacError wraps an HMAC verification failure. Always fatal.
type MacError struct {
	Underlying error
}

func (e *MacError) Error() string {
	return fmt.Sprintf("mac error: %v", e.Underlying)
}

func (e *MacError) Unwrap() error { return e.Underlying }

func NewMacError(err error) *MacError {
	return &MacError{Underlying: err}
}

// AuthError wraps a `failure` node received during the handshake. Fatal to
// the login attempt; surfaced to the login callback.
type AuthError struct {
	Code string
	Text string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error %s: %s", e.Code, e.Text)
}

func NewAuthError(code, text string) *AuthError {
	return &AuthError{Code: code, Text: text}
}

// RequestError wraps an `iq` node with an `error` child. Resolved onto the
// tracked callback for that request id; not fatal to the session.
type RequestError struct {
	Code int
	Text string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request error %d: %s", e.Code, e.Text)
}

func NewRequestError(code int, text string) *RequestError {
	return &RequestError{Code: code, Text: text}
}

// MediaError wraps a thumbnail, download, or upload failure. Surfaced via
// a dedicated media-error event; not fatal to the session.
type MediaError struct {
	Target     string
	Underlying error
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("media error (%s): %v", e.Target, e.Underlying)
}

func (e *MediaError) Unwrap() error { return e.Underlying }

func NewMediaError(target string, err error) *MediaError {
	return &MediaError{Target: target, Underlying: err}
}

// TransportError wraps a socket-level failure. Triggers the reconnect
// policy.
type TransportError struct {
	Underlying error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Underlying)
}

func (e *TransportError) Unwrap() error { return e.Underlying }

func NewTransportError(err error) *TransportError {
	return &TransportError{Underlying: err}
}

// EncryptionError wraps a decryption failure, missing session, or pre-key
// mismatch. Logged and the affected message dropped; not fatal.
type EncryptionError struct {
	Jid        string
	Underlying error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("encryption error (%s): %v", e.Jid, e.Underlying)
}

func (e *EncryptionError) Unwrap() error { return e.Underlying }

func NewEncryptionError(jid string, err error) *EncryptionError {
	return &EncryptionError{Jid: jid, Underlying: err}
}

// Disconnected is returned to any tracked request resolved by disconnect().
var Disconnected = fmt.Errorf("waxmpp: disconnected")
