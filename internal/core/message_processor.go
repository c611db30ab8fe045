package core

import "strconv"

// matcher is one entry in MessageProcessor's ordered matcher list: matches
// decides whether a `message` node belongs to this matcher, process builds
// its typed emission. The processor holds no back-pointer to the session
// (§9 "Cyclic references"); it returns a value, the session emits it.
type matcher struct {
	name    string
	matches func(*Node) bool
	process func(*Node) Event
}

// MessageProcessor dispatches inbound `message` nodes to typed events using
// an ordered, first-match-wins matcher list (§4.5). Non-matching messages
// are silently discarded: they are typically already fully handled by the
// state machine (receipts, acks, notifications).
type MessageProcessor struct {
	matchers []matcher
}

// NewMessageProcessor builds the processor with the built-in matchers in
// their canonical order: text, location, image, video, audio, vcard.
func NewMessageProcessor() *MessageProcessor {
	p := &MessageProcessor{}
	p.matchers = []matcher{
		{name: "text", matches: matchesText, process: processText},
		{name: "location", matches: matchesLocation, process: processLocation},
		{name: "image", matches: matchesMediaType("image"), process: processMediaType("image")},
		{name: "video", matches: matchesMediaType("video"), process: processMediaType("video")},
		{name: "audio", matches: matchesMediaType("audio"), process: processMediaType("audio")},
		{name: "vcard", matches: matchesVcard, process: processVcard},
	}
	return p
}

// Process runs the matcher list against a `message` node and returns the
// first match's emission, or (Event{}, false) if nothing matched.
func (p *MessageProcessor) Process(n *Node) (Event, bool) {
	for _, m := range p.matchers {
		if m.matches(n) {
			return m.process(n), true
		}
	}
	return Event{}, false
}

func commonFields(n *Node) (from, id, notify, author string, ts int64) {
	from = n.AttrOr("from", "")
	id = n.AttrOr("id", "")
	notify = n.AttrOr("notify", "")
	author = n.AttrOr("author", "")
	if t, ok := n.Attr("t"); ok {
		ts, _ = strconv.ParseInt(t, 10, 64)
	}
	return
}

// The newest revision of the source disagreed on whether "image" is
// signaled by an attribute on the outer node, the second child, or
// child('media').attribute('type'); per §9 open question (b) the canonical
// form used here is child('media').attribute('type').

func matchesText(n *Node) bool {
	return n.Child("media") == nil && n.Child("body") != nil
}

func processText(n *Node) Event {
	from, id, notify, author, ts := commonFields(n)
	body := n.Child("body")
	return Event{
		Kind: EventReceivedText,
		Text: &TextMessage{
			From: from, ID: id, Notify: notify, Author: author,
			Timestamp: ts, Body: body.Text(),
		},
	}
}

func matchesLocation(n *Node) bool {
	return n.Child("media") == nil && n.Child("location") != nil
}

func processLocation(n *Node) Event {
	from, id, notify, author, ts := commonFields(n)
	loc := n.Child("location")
	lat, _ := strconv.ParseFloat(loc.AttrOr("latitude", "0"), 64)
	lng, _ := strconv.ParseFloat(loc.AttrOr("longitude", "0"), 64)
	return Event{
		Kind: EventReceivedLocation,
		Location: &LocationMessage{
			From: from, ID: id, Notify: notify, Author: author, Timestamp: ts,
			Latitude: lat, Longitude: lng,
			Name:      loc.AttrOr("name", ""),
			URL:       loc.AttrOr("url", ""),
			Thumbnail: loc.Payload,
		},
	}
}

func matchesMediaType(kind string) func(*Node) bool {
	return func(n *Node) bool {
		media := n.Child("media")
		return media != nil && media.AttrOr("type", "") == kind
	}
}

var mediaEventKind = map[string]EventKind{
	"image": EventReceivedImage,
	"video": EventReceivedVideo,
	"audio": EventReceivedAudio,
}

func processMediaType(kind string) func(*Node) Event {
	return func(n *Node) Event {
		from, id, notify, author, ts := commonFields(n)
		media := n.Child("media")
		width, _ := strconv.Atoi(media.AttrOr("width", "0"))
		height, _ := strconv.Atoi(media.AttrOr("height", "0"))
		duration, _ := strconv.Atoi(media.AttrOr("seconds", "0"))
		size, _ := strconv.ParseInt(media.AttrOr("size", "0"), 10, 64)
		var thumb []byte
		if t := n.Child("thumbnail"); t != nil {
			thumb = t.Payload
		}
		return Event{
			Kind: mediaEventKind[kind],
			Media: &MediaMessage{
				From: from, ID: id, Notify: notify, Author: author, Timestamp: ts,
				URL:       media.AttrOr("url", ""),
				Size:      size,
				File:      media.AttrOr("file", ""),
				Encoding:  media.AttrOr("encoding", ""),
				IP:        media.AttrOr("ip", ""),
				MimeType:  media.AttrOr("mimetype", ""),
				FileHash:  media.AttrOr("filehash", ""),
				Width:     width,
				Height:    height,
				Duration:  duration,
				Codecs:    media.AttrOr("codecs", ""),
				Thumbnail: thumb,
				Caption:   media.AttrOr("caption", ""),
			},
		}
	}
}

func matchesVcard(n *Node) bool {
	return n.Child("media") == nil && n.Child("vcard") != nil
}

func processVcard(n *Node) Event {
	from, id, notify, author, ts := commonFields(n)
	vcard := n.Child("vcard")
	return Event{
		Kind: EventReceivedVcard,
		Vcard: &VcardMessage{
			From: from, ID: id, Notify: notify, Author: author, Timestamp: ts,
			Name:  vcard.AttrOr("name", ""),
			Vcard: []byte(NormalizeText(vcard.Payload)),
		},
	}
}
