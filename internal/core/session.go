package core

import (
	"context"
	"crypto/tls"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nimda/waxmpp/internal/interfaces"
	"github.com/nimda/waxmpp/pkg/waerrors"
	"github.com/nimda/waxmpp/pkg/walog"
)

// SessionState names a SessionStateMachine phase (§4.4).
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateHandshakeInit
	StateAwaitingChallengeOrSuccess
	StateLoggedIn
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateHandshakeInit:
		return "handshake-init"
	case StateAwaitingChallengeOrSuccess:
		return "awaiting-challenge-or-success"
	case StateLoggedIn:
		return "logged-in"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EncryptionHandler is the hook SessionStateMachine calls into for the
// Signal/Axolotl bridge, kept as a narrow interface here so core never
// imports the encryption package (§9 "Cyclic references" applied one layer
// up: the bridge depends on core.Sender, not the other way around).
type EncryptionHandler interface {
	// OnEncryptNotification fires when the server pushes a `notification`
	// of type "encrypt" with a pre-key replenishment count.
	OnEncryptNotification(count int)
	// OnPreKeyIQResult gives the handler first refusal on every inbound iq;
	// it returns true if the iq was one of its own (pre-key fetch/publish)
	// and has been fully handled.
	OnPreKeyIQResult(id string, result *Node) bool
	// OnInboundEncrypted decrypts an <enc> child found on a message node,
	// returning the recovered plaintext.
	OnInboundEncrypted(msg *Node, enc *Node) ([]byte, error)
	// AfterLogin runs once the session reaches LoggedIn, for initial
	// pre-key publication.
	AfterLogin()
}

// Sender is the narrow surface EncryptionBridge and ApiSurface need from
// the session: enqueue-or-send a node, mint message ids, and track an IQ's
// response.
type Sender interface {
	SendNode(n *Node) error
	SendIQ(n *Node, cb RequestCallback) error
	NextMessageId(prefix string) string
}

// SessionStateMachine drives one connection end to end: handshake, login,
// steady-state node dispatch, and reconnect. It is built to run on a single
// logical thread (§5): Transport's read goroutine calls into it, but every
// entry point takes the session mutex, so handler code never overlaps.
type SessionStateMachine struct {
	cfg  *interfaces.Config
	dict *Dictionary

	writer *Writer
	reader *Reader

	transport      *Transport
	tracker        *RequestTracker
	sendQueue      *SendQueue
	mediaQueue     *MediaRequestQueue
	processor      *MessageProcessor
	challengeStore *ChallengeStore

	mu            sync.Mutex
	state         SessionState
	pendingNonce  []byte
	idCounter     atomic.Int64
	encryption    EncryptionHandler
	onEvent       EventHandler
	lastErr       error
	explicitClose bool
	reconnectSeq  int
	pingTicker    *time.Ticker
	pingStop      chan struct{}
	metrics       interfaces.Metrics
	mediaResume   func(context.Context, PendingMedia) error
}

// NewSessionStateMachine builds a session against cfg, using dict for
// binary-XML tokenization (DefaultDictionary unless the caller needs a
// custom table set).
func NewSessionStateMachine(cfg *interfaces.Config, dict *Dictionary) *SessionStateMachine {
	return &SessionStateMachine{
		cfg:            cfg,
		dict:           dict,
		writer:         NewWriter(dict),
		reader:         NewReader(dict),
		tracker:        NewRequestTracker(),
		sendQueue:      NewSendQueue(),
		mediaQueue:     NewMediaRequestQueue(),
		processor:      NewMessageProcessor(),
		challengeStore: NewChallengeStore(cfg.ChallengeFilePath),
		state:          StateDisconnected,
		metrics:        interfaces.NoopMetrics{},
	}
}

// OnEvent installs the handler that receives every emitted Event.
func (s *SessionStateMachine) OnEvent(h EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvent = h
}

// SetMetrics wires a Metrics backend; defaults to a no-op.
func (s *SessionStateMachine) SetMetrics(m interfaces.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m != nil {
		s.metrics = m
	}
}

// SetMediaResumeHandler wires in the callback used to re-issue pending
// media uploads that were interrupted by a disconnect, once login succeeds
// again.
func (s *SessionStateMachine) SetMediaResumeHandler(h func(context.Context, PendingMedia) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mediaResume = h
}

// SetEncryptionHandler wires in the Signal/Axolotl bridge.
func (s *SessionStateMachine) SetEncryptionHandler(h EncryptionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encryption = h
}

// State reports the current phase.
func (s *SessionStateMachine) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MediaQueue exposes the outbound media-upload bookkeeping for ApiSurface.
func (s *SessionStateMachine) MediaQueue() *MediaRequestQueue { return s.mediaQueue }

// NextMessageId mints a message id of the form prefix-unixts-counter, unique
// for the lifetime of the process. With no prefix (registration/diagnostic
// IQs that aren't part of the dispatch table's usual prefix families) it
// falls back to a random UUID instead, since there's no meaningful counter
// namespace to scope those under.
func (s *SessionStateMachine) NextMessageId(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	n := s.idCounter.Add(1)
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().Unix(), n)
}

// Connect dials the server and begins the handshake. It returns once the
// TCP/TLS connection is established; login completion is reported
// asynchronously via EventLogin/EventLoginFailed.
func (s *SessionStateMachine) Connect(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.explicitClose = false
	tlsCfg := &tls.Config{ServerName: s.cfg.Host}
	s.transport = NewTransport(s.cfg.Host, s.cfg.Port, s.cfg.DialTimeout, tlsCfg)
	s.transport.SetCallbacks(TransportCallbacks{
		OnConnect: s.handleConnect,
		OnData:    s.handleData,
		OnError:   s.handleTransportError,
		OnEnd:     s.handleDisconnect,
	})
	transport := s.transport
	s.mu.Unlock()

	return transport.Connect(ctx)
}

// Close disconnects deliberately: no reconnect will be scheduled.
func (s *SessionStateMachine) Close() error {
	s.mu.Lock()
	s.explicitClose = true
	transport := s.transport
	s.mu.Unlock()
	if transport == nil {
		return nil
	}
	err := transport.Close()
	s.tracker.CancelAll(waerrors.Disconnected)
	return err
}

func (s *SessionStateMachine) handleConnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateHandshakeInit
	header := s.writer.StreamHeader("s.whatsapp.net", s.cfg.MSISDN)
	if err := s.transport.Write(header); err != nil {
		s.failLocked(err)
		return
	}

	nonce, cached, err := s.challengeStore.Load()
	if err != nil {
		walog.Warn().Err(err).Msg("session: reading cached challenge")
	}

	auth := NewNode("auth").SetAttr("mechanism", "WAUTH-2").SetAttr("user", s.cfg.MSISDN)
	if cached {
		derived := DeriveKeys(s.cfg.Password, nonce)
		if err := s.installKeysLocked(derived); err != nil {
			s.failLocked(err)
			return
		}
		auth.SetPayload(buildAuthPayload(s.cfg, nonce))
		walog.Debug().Msg("session: attempting one-round-trip login with cached challenge")
	}

	if err := s.sendNodeLocked(auth); err != nil {
		s.failLocked(err)
		return
	}
	s.state = StateAwaitingChallengeOrSuccess
}

func (s *SessionStateMachine) installKeysLocked(derived *DerivedKeys) error {
	writerKS, err := derived.NewWriterKeyStream()
	if err != nil {
		return err
	}
	readerKS, err := derived.NewReaderKeyStream()
	if err != nil {
		return err
	}
	s.writer.InstallKeyStream(writerKS)
	s.reader.InstallKeyStream(readerKS)
	return nil
}

// buildAuthPayload renders the identity blob embedded in <auth>/<response>:
// 4 reserved zero bytes, the MSISDN, the challenge nonce, a decimal unix
// timestamp, the configured user agent, and a trailing " MccMnc/<mcc>001"
// marker.
func buildAuthPayload(cfg *interfaces.Config, nonce []byte) []byte {
	out := make([]byte, 0, 4+len(cfg.MSISDN)+len(nonce)+48)
	out = append(out, 0, 0, 0, 0)
	out = append(out, []byte(cfg.MSISDN)...)
	out = append(out, nonce...)
	out = append(out, []byte(strconv.FormatInt(time.Now().Unix(), 10))...)
	out = append(out, []byte(cfg.UserAgent)...)
	out = append(out, []byte(fmt.Sprintf(" MccMnc/%s001", cfg.MCC))...)
	return out
}

func (s *SessionStateMachine) handleData(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reader.Feed(data)
	for {
		node, err := s.reader.Next()
		if err != nil {
			s.failLocked(err)
			return
		}
		if node == nil {
			return
		}
		s.metrics.IncReceived(node.Tag)
		s.dispatchLocked(node)
	}
}

func (s *SessionStateMachine) handleTransportError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	walog.Warn().Err(err).Msg("session: transport error")
}

func (s *SessionStateMachine) handleDisconnect() {
	s.mu.Lock()
	err := s.lastErr
	if err == nil {
		err = waerrors.Disconnected
	}
	wasLoggedIn := s.state == StateLoggedIn
	s.state = StateDisconnected
	s.stopPingLocked()
	explicit := s.explicitClose
	attempt := s.reconnectSeq
	cfg := s.cfg
	s.mu.Unlock()

	s.tracker.CancelAll(waerrors.Disconnected)
	if wasLoggedIn {
		s.emit(Event{Kind: EventDisconnected, Err: err})
	}

	if explicit || !cfg.ReconnectEnabled {
		return
	}
	go s.scheduleReconnect(attempt)
}

func (s *SessionStateMachine) scheduleReconnect(attempt int) {
	wait := backoffWithJitter(s.cfg.ReconnectBaseWait, s.cfg.ReconnectMaxWait, attempt)
	s.metrics.IncReconnect()
	walog.Milestone().Int("attempt", attempt).Dur("wait", wait).Msg("session: reconnecting")
	time.Sleep(wait)

	s.mu.Lock()
	if s.explicitClose {
		s.mu.Unlock()
		return
	}
	s.reconnectSeq = attempt + 1
	s.mu.Unlock()

	if err := s.Connect(context.Background()); err != nil {
		walog.Error().Err(err).Msg("session: reconnect attempt failed")
		go s.scheduleReconnect(attempt + 1)
	}
}

// backoffWithJitter computes base*2^attempt capped at max, plus up to 20%
// jitter, so a fleet of reconnecting clients doesn't hammer the server in
// lockstep.
func backoffWithJitter(base, max time.Duration, attempt int) time.Duration {
	wait := base
	for i := 0; i < attempt && wait < max; i++ {
		wait *= 2
	}
	if wait > max {
		wait = max
	}
	jitter := time.Duration(rand.Int63n(int64(wait)/5 + 1))
	return wait + jitter
}

func (s *SessionStateMachine) failLocked(err error) {
	s.state = StateFailed
	s.lastErr = err
	walog.Error().Err(err).Msg("session: fatal protocol error")
	if s.transport != nil {
		_ = s.transport.Close()
	}
}

// dispatchLocked routes one decoded node by current state. Called with mu
// held.
func (s *SessionStateMachine) dispatchLocked(n *Node) {
	switch n.Tag {
	case "challenge":
		s.handleChallengeLocked(n)
		return
	case "success":
		s.handleSuccessLocked(n)
		return
	case "failure":
		s.handleFailureLocked(n)
		return
	}
	if s.state != StateLoggedIn {
		walog.Trace().Str("tag", n.Tag).Msg("session: node ignored before login")
		return
	}
	s.dispatchLoggedInLocked(n)
}

func (s *SessionStateMachine) handleChallengeLocked(n *Node) {
	nonce := n.Payload
	derived := DeriveKeys(s.cfg.Password, nonce)
	if err := s.installKeysLocked(derived); err != nil {
		s.failLocked(err)
		return
	}
	resp := NewNode("response").SetPayload(buildAuthPayload(s.cfg, nonce))
	if err := s.sendNodeLocked(resp); err != nil {
		s.failLocked(err)
		return
	}
	s.pendingNonce = nonce
	s.state = StateAwaitingChallengeOrSuccess
}

func (s *SessionStateMachine) handleSuccessLocked(n *Node) {
	if s.pendingNonce != nil {
		if err := s.challengeStore.Save(s.pendingNonce); err != nil {
			walog.Warn().Err(err).Msg("session: persisting challenge")
		}
		s.pendingNonce = nil
	}
	s.state = StateLoggedIn
	s.reconnectSeq = 0

	for _, node := range s.sendQueue.Drain() {
		if err := s.sendNodeLocked(node); err != nil {
			walog.Warn().Err(err).Msg("session: draining send queue")
		}
	}
	s.startPingLocked()
	if s.encryption != nil {
		// Run off the session mutex: the handler sends through SendIQ,
		// which takes s.mu itself.
		go s.encryption.AfterLogin()
	}
	if s.mediaResume != nil && s.mediaQueue.Len() > 0 {
		go func() {
			if err := s.mediaQueue.Drain(context.Background(), s.mediaResume); err != nil {
				walog.Warn().Err(err).Msg("session: resuming pending media uploads")
			}
		}()
	}
	s.emitLocked(Event{Kind: EventLogin, Login: &LoginEvent{}})
}

func (s *SessionStateMachine) handleFailureLocked(n *Node) {
	s.state = StateFailed
	code := n.AttrOr("reason", n.AttrOr("code", "unknown"))
	s.emitLocked(Event{Kind: EventLoginFailed, Err: waerrors.NewAuthError(code, n.Text())})
}

// dispatchLoggedInLocked implements the §4.4 steady-state dispatch table.
func (s *SessionStateMachine) dispatchLoggedInLocked(n *Node) {
	switch n.Tag {
	case "iq":
		s.dispatchIQLocked(n)
	case "message":
		s.dispatchMessageLocked(n)
	case "notification":
		s.dispatchNotificationLocked(n)
	case "receipt":
		s.dispatchReceiptLocked(n)
	case "presence":
		s.dispatchPresenceLocked(n)
	case "ib":
		s.dispatchIBLocked(n)
	case "stream:error":
		s.failLocked(waerrors.NewProtocolError(fmt.Errorf("stream error: %s", n.String())))
	default:
		walog.Trace().Str("tag", n.Tag).Msg("session: unhandled node")
	}
}

func (s *SessionStateMachine) dispatchIQLocked(n *Node) {
	id := n.AttrOr("id", "")

	if n.AttrOr("type", "") == "get" && n.Child("ping") != nil {
		pong := NewNode("iq").SetAttr("id", id).SetAttr("type", "result").SetAttr("to", n.AttrOr("from", ""))
		if err := s.sendNodeLocked(pong); err != nil {
			walog.Warn().Err(err).Msg("session: replying to ping")
		}
		return
	}

	if s.encryption != nil && s.encryption.OnPreKeyIQResult(id, n) {
		return
	}

	if n.AttrOr("type", "") == "error" {
		code := 0
		text := ""
		if errNode := n.Child("error"); errNode != nil {
			code, _ = strconv.Atoi(errNode.AttrOr("code", "0"))
			text = errNode.AttrOr("text", errNode.Tag)
		}
		s.tracker.Resolve(id, nil, waerrors.NewRequestError(code, text))
		return
	}

	if s.tracker.Resolve(id, n, nil) {
		return
	}

	if s.emitUnsolicitedGroupIQLocked(n) {
		return
	}

	walog.Trace().Str("id", id).Msg("session: iq result with no tracked request")
}

// emitUnsolicitedGroupIQLocked handles the four group-event shapes that can
// arrive as a server-pushed `iq` with no tracked request behind them (e.g.
// being added to a group by someone else), the same "set" push pattern
// dispatchNotificationLocked already handles for subject/participant
// changes. Returns true if n matched one of the shapes and was emitted.
func (s *SessionStateMachine) emitUnsolicitedGroupIQLocked(n *Node) bool {
	if leave := n.Child("leave"); leave != nil {
		groupJID := ""
		if group := leave.Child("group"); group != nil {
			groupJID = group.AttrOr("id", group.AttrOr("jid", ""))
		}
		s.emitLocked(Event{Kind: EventGroupParticipantLeft, Group: &GroupEvent{
			Group:  groupJID,
			Author: n.AttrOr("from", ""),
		}})
		return true
	}

	if list := n.Child("groups"); list != nil {
		groups := make([]string, 0, len(list.Children))
		for _, g := range list.Children {
			if g.Tag == "group" {
				groups = append(groups, g.AttrOr("jid", ""))
			}
		}
		s.emitLocked(Event{Kind: EventGroupListReceived, Group: &GroupEvent{Groups: groups}})
		return true
	}

	if group := n.Child("group"); group != nil {
		if group.AttrOr("action", "") == "create" {
			s.emitLocked(Event{Kind: EventGroupCreated, Group: &GroupEvent{
				Group:   group.AttrOr("jid", ""),
				Subject: group.AttrOr("subject", ""),
				Author:  n.AttrOr("from", ""),
			}})
			return true
		}

		participants := make([]string, 0, len(group.Children))
		for _, c := range group.Children {
			if c.Tag != "participant" {
				continue
			}
			if jid, ok := c.Attr("jid"); ok {
				participants = append(participants, jid)
			}
		}
		if len(participants) > 0 {
			s.emitLocked(Event{Kind: EventGroupParticipantsReceived, Group: &GroupEvent{
				Group:        group.AttrOr("jid", n.AttrOr("from", "")),
				Participants: participants,
			}})
			return true
		}
	}

	return false
}

func (s *SessionStateMachine) dispatchMessageLocked(n *Node) {
	if n.AttrOr("type", "") == "chatstate" || n.Child("composing") != nil || n.Child("paused") != nil {
		s.emitLocked(Event{Kind: EventTyping, Typing: &TypingEvent{
			From:      n.AttrOr("from", ""),
			Composing: n.Child("composing") != nil,
		}})
		return
	}

	if enc := n.Child("enc"); enc != nil {
		if s.encryption == nil {
			walog.Warn().Str("from", n.AttrOr("from", "")).Msg("session: encrypted message with no encryption handler installed")
			return
		}
		plaintext, err := s.encryption.OnInboundEncrypted(n, enc)
		if err != nil {
			s.ackMessageLocked(n)
			s.emitLocked(Event{Kind: EventMediaError, Err: waerrors.NewEncryptionError(n.AttrOr("from", ""), err)})
			return
		}
		from, id, notify, author, ts := commonFields(n)
		s.ackMessageLocked(n)
		s.emitLocked(Event{Kind: EventTyping, Typing: &TypingEvent{From: from, Composing: false}})
		s.emitLocked(Event{Kind: EventReceivedText, Text: &TextMessage{
			From: from, ID: id, Notify: notify, Author: author, Timestamp: ts, Body: string(plaintext),
		}})
		return
	}

	event, matched := s.processor.Process(n)
	s.ackMessageLocked(n)
	if !matched {
		return
	}
	if event.Kind == EventReceivedText {
		s.emitLocked(Event{Kind: EventTyping, Typing: &TypingEvent{From: n.AttrOr("from", ""), Composing: false}})
	}
	s.emitLocked(event)
}

func (s *SessionStateMachine) ackMessageLocked(n *Node) {
	ack := NewNode("ack").
		SetAttr("class", "receipt").
		SetAttr("id", n.AttrOr("id", "")).
		SetAttr("to", n.AttrOr("from", ""))
	if err := s.sendNodeLocked(ack); err != nil {
		walog.Warn().Err(err).Msg("session: acking message")
	}
}

func (s *SessionStateMachine) dispatchNotificationLocked(n *Node) {
	ack := NewNode("ack").
		SetAttr("class", "notification").
		SetAttr("id", n.AttrOr("id", "")).
		SetAttr("to", n.AttrOr("from", ""))
	if err := s.sendNodeLocked(ack); err != nil {
		walog.Warn().Err(err).Msg("session: acking notification")
	}

	switch n.AttrOr("type", "") {
	case "encrypt":
		if s.encryption != nil {
			count := 0
			if c := n.Child("count"); c != nil {
				count, _ = strconv.Atoi(c.AttrOr("value", "0"))
			}
			go s.encryption.OnEncryptNotification(count)
		}
	case "picture":
		s.emitLocked(Event{Kind: EventProfilePictureReceived, ProfilePicture: &ProfilePictureEvent{
			From: n.AttrOr("from", ""),
		}})
	case "subject":
		s.emitLocked(Event{Kind: EventGroupSubjectChanged, Group: &GroupEvent{
			Group:   n.AttrOr("from", ""),
			Subject: n.Text(),
			Author:  n.AttrOr("author", ""),
		}})
	case "participant":
		s.dispatchParticipantNotificationLocked(n)
	default:
		walog.Trace().Str("type", n.AttrOr("type", "")).Msg("session: unhandled notification")
	}
}

func (s *SessionStateMachine) dispatchParticipantNotificationLocked(n *Node) {
	var participants []string
	for _, c := range n.Children {
		if c.Tag == "participant" {
			participants = append(participants, c.AttrOr("jid", ""))
		}
	}
	kind := EventGroupParticipantsAdded
	if n.AttrOr("add", "") == "" && n.AttrOr("remove", "") != "" {
		kind = EventGroupParticipantsRemoved
	}
	s.emitLocked(Event{Kind: kind, Group: &GroupEvent{
		Group:        n.AttrOr("from", ""),
		Author:       n.AttrOr("author", ""),
		Participants: participants,
	}})
}

func (s *SessionStateMachine) dispatchReceiptLocked(n *Node) {
	id := n.AttrOr("id", "")
	if id != "" {
		s.emitLocked(Event{Kind: EventClientReceived, ClientReceived: &ClientReceivedEvent{ID: id}})
	}
	if list := n.Child("list"); list != nil {
		for _, item := range list.Children {
			if itemID := item.AttrOr("id", ""); itemID != "" {
				s.emitLocked(Event{Kind: EventClientReceived, ClientReceived: &ClientReceivedEvent{ID: itemID}})
			}
		}
	}

	ack := NewNode("ack").
		SetAttr("class", "receipt").
		SetAttr("id", id).
		SetAttr("to", n.AttrOr("from", ""))
	if err := s.sendNodeLocked(ack); err != nil {
		walog.Warn().Err(err).Msg("session: acking receipt")
	}
}

func (s *SessionStateMachine) dispatchPresenceLocked(n *Node) {
	event := PresenceEvent{
		From:      n.AttrOr("from", ""),
		Available: n.AttrOr("type", "") != "unavailable",
	}
	if last, ok := n.Attr("last"); ok {
		if ts, err := strconv.ParseInt(last, 10, 64); err == nil {
			event.LastSeen = ts
			event.HasLast = true
		}
	}
	s.emitLocked(Event{Kind: EventPresence, Presence: &event})
}

func (s *SessionStateMachine) dispatchIBLocked(n *Node) {
	if dirty := n.Child("dirty"); dirty != nil {
		clean := NewNode("iq").
			SetAttr("id", s.NextMessageId("clean")).
			SetAttr("type", "set").
			SetAttr("to", "s.whatsapp.net").
			AddChild(NewNode("clean").SetAttr("type", dirty.AttrOr("type", "")))
		if err := s.sendNodeLocked(clean); err != nil {
			walog.Warn().Err(err).Msg("session: acking dirty presence")
		}
	}
}

func (s *SessionStateMachine) startPingLocked() {
	s.stopPingLocked()
	if s.cfg.PingInterval <= 0 {
		return
	}
	s.pingTicker = time.NewTicker(s.cfg.PingInterval)
	s.pingStop = make(chan struct{})
	ticker := s.pingTicker
	stop := s.pingStop
	go func() {
		for {
			select {
			case <-ticker.C:
				s.sendPing()
			case <-stop:
				return
			}
		}
	}()
}

func (s *SessionStateMachine) stopPingLocked() {
	if s.pingTicker != nil {
		s.pingTicker.Stop()
		close(s.pingStop)
		s.pingTicker = nil
		s.pingStop = nil
	}
}

func (s *SessionStateMachine) sendPing() {
	ping := NewNode("iq").
		SetAttr("id", s.NextMessageId("ping")).
		SetAttr("type", "get").
		SetAttr("to", "s.whatsapp.net").
		AddChild(NewNode("ping"))
	if err := s.SendIQ(ping, func(*Node, error) {}); err != nil {
		walog.Warn().Err(err).Msg("session: sending keepalive ping")
	}
}

// SendNode writes n immediately if logged in, or buffers it on the
// SendQueue to be flushed on login otherwise (§4.4 SendQueue).
func (s *SessionStateMachine) SendNode(n *Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLoggedIn {
		s.sendQueue.Enqueue(n.AttrOr("to", ""), n)
		s.metrics.SetQueueDepth("send", s.sendQueue.Len())
		return nil
	}
	return s.sendNodeLocked(n)
}

// SendIQ tracks cb against n's id, then sends n as SendNode does.
func (s *SessionStateMachine) SendIQ(n *Node, cb RequestCallback) error {
	id := n.AttrOr("id", "")
	if id == "" {
		return fmt.Errorf("core: iq node missing id")
	}
	s.tracker.Track(id, cb)
	if err := s.SendNode(n); err != nil {
		s.tracker.Cancel(id)
		return err
	}
	return nil
}

// DedupeIQ collapses concurrent identical IQ lookups (e.g. repeated
// last-seen requests for the same JID) via the request tracker's
// singleflight group, sending at most one IQ on the wire.
func (s *SessionStateMachine) DedupeIQ(key string, build func() *Node, timeout time.Duration) (*Node, error) {
	result, err, _ := s.tracker.Dedupe(key, func() (*Node, error) {
		n := build()
		id := n.AttrOr("id", "")
		ch := make(chan struct {
			node *Node
			err  error
		}, 1)
		if err := s.SendIQ(n, func(node *Node, err error) {
			ch <- struct {
				node *Node
				err  error
			}{node, err}
		}); err != nil {
			return nil, err
		}
		select {
		case res := <-ch:
			return res.node, res.err
		case <-time.After(timeout):
			s.tracker.Cancel(id)
			return nil, fmt.Errorf("core: iq %s timed out", id)
		}
	})
	return result, err
}

func (s *SessionStateMachine) sendNodeLocked(n *Node) error {
	framed, err := s.writer.Node(n)
	if err != nil {
		return err
	}
	s.metrics.IncSent(n.Tag)
	return s.transport.Write(framed)
}

func (s *SessionStateMachine) emit(e Event) {
	s.mu.Lock()
	h := s.onEvent
	s.mu.Unlock()
	if h != nil {
		h(e)
	}
}

func (s *SessionStateMachine) emitLocked(e Event) {
	if s.onEvent != nil {
		s.onEvent(e)
	}
}
