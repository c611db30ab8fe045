package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/nimda/waxmpp/internal/core"
)

// SendText sends a plain text message to to (a bare or full JID) and
// returns the message id assigned to it.
func (a *ApiSurface) SendText(to, body string) (string, error) {
	id := a.session.NextMessageId("msg")
	n := core.NewNode("message").
		SetAttr("id", id).
		SetAttr("type", "text").
		SetAttr("to", to).
		AddChild(core.NewNode("body").SetText(body))
	if err := a.session.SendNode(n); err != nil {
		return "", err
	}
	return id, nil
}

// SendEncryptedText sends body to "to" through the Signal/Axolotl bridge.
// Returns an error if no bridge was wired via SetEncryptionBridge.
func (a *ApiSurface) SendEncryptedText(to, body string) (string, error) {
	if a.bridge == nil {
		return "", errNoEncryptionBridge
	}
	id := a.session.NextMessageId("msg")
	if err := a.bridge.EncryptAndSend(to, id, []byte(body)); err != nil {
		return "", err
	}
	return id, nil
}

// SendLocation shares a point with a display name; no URL is sent.
func (a *ApiSurface) SendLocation(to string, lat, lng float64, name string) (string, error) {
	id := a.session.NextMessageId("msg")
	loc := core.NewNode("location").
		SetAttr("latitude", strconv.FormatFloat(lat, 'f', -1, 64)).
		SetAttr("longitude", strconv.FormatFloat(lng, 'f', -1, 64)).
		SetAttr("name", name)
	n := core.NewNode("message").
		SetAttr("id", id).
		SetAttr("type", "media").
		SetAttr("to", to).
		AddChild(loc)
	if err := a.session.SendNode(n); err != nil {
		return "", err
	}
	return id, nil
}

// SendVcard shares a contact card.
func (a *ApiSurface) SendVcard(to, name string, vcard []byte) (string, error) {
	id := a.session.NextMessageId("msg")
	card := core.NewNode("vcard").SetAttr("name", name).SetPayload(vcard)
	n := core.NewNode("message").
		SetAttr("id", id).
		SetAttr("type", "media").
		SetAttr("to", to).
		AddChild(card)
	if err := a.session.SendNode(n); err != nil {
		return "", err
	}
	return id, nil
}

// SendComposing announces that the local user started typing to "to".
func (a *ApiSurface) SendComposing(to string) error {
	return a.sendChatState(to, "composing")
}

// SendPaused announces that the local user stopped typing to "to".
func (a *ApiSurface) SendPaused(to string) error {
	return a.sendChatState(to, "paused")
}

func (a *ApiSurface) sendChatState(to, state string) error {
	n := core.NewNode("message").
		SetAttr("id", a.session.NextMessageId("chatstate")).
		SetAttr("type", "chatstate").
		SetAttr("to", to).
		AddChild(core.NewNode(state))
	return a.session.SendNode(n)
}

// LastSeenResult is the resolved value of a last-seen query: SecondsAgo is
// the wire `seconds` attribute verbatim, Date is that offset applied to the
// current time for callers that want an absolute timestamp.
type LastSeenResult struct {
	Date       time.Time
	SecondsAgo int64
}

// RequestLastSeen fetches how long to has been offline for. Concurrent
// calls for the same JID are collapsed into a single request.
func (a *ApiSurface) RequestLastSeen(to string) (LastSeenResult, error) {
	result, err := a.session.DedupeIQ("lastseen:"+to, func() *core.Node {
		return core.NewNode("iq").
			SetAttr("id", a.session.NextMessageId("lastseen")).
			SetAttr("type", "get").
			SetAttr("to", to).
			AddChild(core.NewNode("query").SetAttr("xmlns", "jabber:iq:last"))
	}, defaultRequestTimeout)
	if err != nil {
		return LastSeenResult{}, err
	}
	if result.AttrOr("type", "") == "error" {
		return LastSeenResult{}, wrapRequestError(result)
	}
	query := result.Child("query")
	if query == nil {
		return LastSeenResult{}, fmt.Errorf("api: last-seen result missing query")
	}
	seconds, err := strconv.ParseInt(query.AttrOr("seconds", "0"), 10, 64)
	if err != nil {
		return LastSeenResult{}, fmt.Errorf("api: parsing last-seen seconds: %w", err)
	}
	return LastSeenResult{
		Date:       time.Now().Add(-time.Duration(seconds) * time.Second),
		SecondsAgo: seconds,
	}, nil
}

// SetPresence announces the local user's availability.
func (a *ApiSurface) SetPresence(available bool) error {
	typ := "unavailable"
	if available {
		typ = "available"
	}
	n := core.NewNode("presence").SetAttr("type", typ)
	return a.session.SendNode(n)
}
