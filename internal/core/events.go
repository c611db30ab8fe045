package core

// EventKind tags which field of Event is populated. Redesigned from the
// source's positional-argument callbacks (§9 "Callback/event sprawl") into
// one explicit enum with named-field payloads.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventLogin
	EventLoginFailed
	EventDisconnected
	EventReceivedText
	EventReceivedLocation
	EventReceivedImage
	EventReceivedVideo
	EventReceivedAudio
	EventReceivedVcard
	EventTyping
	EventPresence
	EventClientReceived
	EventGroupCreated
	EventGroupSubjectChanged
	EventGroupParticipantsAdded
	EventGroupParticipantsRemoved
	EventGroupParticipantLeft
	EventGroupListReceived
	EventGroupParticipantsReceived
	EventProfilePictureReceived
	EventStatusReceived
	EventContactsSyncReceived
	EventMediaError
)

// TextMessage is MessageProcessor's emission for a plain-text message body.
type TextMessage struct {
	From      string
	ID        string
	Timestamp int64
	Notify    string
	Author    string
	Body      string
}

// LocationMessage is the emission for a shared-location message.
type LocationMessage struct {
	From      string
	ID        string
	Timestamp int64
	Notify    string
	Author    string
	Latitude  float64
	Longitude float64
	Name      string
	URL       string
	Thumbnail []byte
}

// MediaMessage covers image/video/audio emissions; Width/Height apply to
// image and video, Duration/Codecs to video and audio.
type MediaMessage struct {
	From      string
	ID        string
	Timestamp int64
	Notify    string
	Author    string
	URL       string
	Size      int64
	File      string
	Encoding  string
	IP        string
	MimeType  string
	FileHash  string
	Width     int
	Height    int
	Duration  int
	Codecs    string
	Thumbnail []byte
	Caption   string
}

// VcardMessage is the emission for a shared contact card.
type VcardMessage struct {
	From      string
	ID        string
	Timestamp int64
	Notify    string
	Author    string
	Name      string
	Vcard     []byte
}

// TypingEvent reports a composing/paused chat-state change for a JID.
type TypingEvent struct {
	From      string
	Composing bool
}

// PresenceEvent reports an availability change, with an optional last-seen
// date when the server includes one.
type PresenceEvent struct {
	From      string
	Available bool
	LastSeen  int64
	HasLast   bool
}

// ClientReceivedEvent fires once per id in an inbound client receipt,
// including each id named in its `list` child.
type ClientReceivedEvent struct {
	ID string
}

// GroupEvent covers every group-query/notification shape named in §4.4's
// dispatch table.
type GroupEvent struct {
	Group        string
	Subject      string
	Author       string
	Participants []string
	Groups       []string
}

// LoginEvent carries nothing beyond the fact of success; kept as a type for
// symmetry with the other event payloads.
type LoginEvent struct{}

// ProfilePictureEvent is the EventProfilePictureReceived payload, emitted
// for an inbound `notification` of type picture; the session sets only From.
type ProfilePictureEvent struct {
	From string
	Data []byte
	Type string
}

// StatusEvent is the payload type for EventStatusReceived. No session path
// emits that kind; ApiSurface.GetStatus returns status text directly.
type StatusEvent struct {
	From   string
	Status string
}

// Event is the single explicit sum type every session emission uses: Kind
// tags which payload field is valid. Only one non-nil/non-zero payload is
// populated per event.
type Event struct {
	Kind            EventKind
	Text            *TextMessage
	Location        *LocationMessage
	Media           *MediaMessage
	Vcard           *VcardMessage
	Typing          *TypingEvent
	Presence        *PresenceEvent
	ClientReceived  *ClientReceivedEvent
	Group           *GroupEvent
	Login           *LoginEvent
	ProfilePicture  *ProfilePictureEvent
	Status          *StatusEvent
	Err             error
}

// EventHandler receives every event the session emits. Handlers run
// synchronously on the session's single logical thread: a handler that
// blocks, blocks the whole session.
type EventHandler func(Event)
