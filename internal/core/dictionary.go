package core

// Dictionary is the fixed two-level token table the codec uses to compress
// tags and common attribute strings. It must be identical on both ends of
// the connection: changing the table contents or its version is a
// forward-incompatible wire change.
//
// The primary table is a flat list; a primary token is a single byte in
// [3, secondaryTagStart). Indices 0..2 are reserved (byte 0 is the
// empty-list opener) and are never emitted as tokens themselves. Up to 8 secondary tables hold
// overflow strings addressed by a two-byte token: a prefix byte in
// [secondaryTagStart, secondaryTagStart+8) selects the table, the following
// byte indexes within it.
type Dictionary struct {
	primary     []string
	primaryIdx  map[string]int
	secondary   [maxSecondaryTables][]string
	secondaryIx [maxSecondaryTables]map[string]int
}

const (
	// secondaryTagStart is the first prefix byte used to address a
	// secondary table; up to maxSecondaryTables tables follow it.
	secondaryTagStart = 236
	maxSecondaryTables = 8
)

// NewDictionary builds a Dictionary from a primary token list and up to
// eight secondary token lists. Index 0 of the primary list is conventionally
// unused (reserved token space); callers pass the full literal table as
// captured from the reference client.
func NewDictionary(primary []string, secondary [][]string) *Dictionary {
	d := &Dictionary{primary: primary}
	d.primaryIdx = make(map[string]int, len(primary))
	for i, s := range primary {
		if s != "" {
			d.primaryIdx[s] = i
		}
	}
	for i := 0; i < maxSecondaryTables && i < len(secondary); i++ {
		d.secondary[i] = secondary[i]
		idx := make(map[string]int, len(secondary[i]))
		for j, s := range secondary[i] {
			idx[s] = j
		}
		d.secondaryIx[i] = idx
	}
	return d
}

// PrimaryToken returns the single-byte token for s, if s is in the primary
// table and addressable (index must fit in [3,secondaryTagStart)).
func (d *Dictionary) PrimaryToken(s string) (byte, bool) {
	i, ok := d.primaryIdx[s]
	if !ok || i < 3 || i >= secondaryTagStart {
		return 0, false
	}
	return byte(i), true
}

// PrimaryAt returns the string at a primary token index.
func (d *Dictionary) PrimaryAt(token byte) (string, bool) {
	i := int(token)
	if i < 0 || i >= len(d.primary) {
		return "", false
	}
	return d.primary[i], true
}

// SecondaryToken returns the (prefix, index) two-byte token for s, if s is
// present in any secondary table.
func (d *Dictionary) SecondaryToken(s string) (prefix byte, index byte, ok bool) {
	for t := 0; t < maxSecondaryTables; t++ {
		if i, found := d.secondaryIx[t][s]; found && i <= 255 {
			return byte(secondaryTagStart + t), byte(i), true
		}
	}
	return 0, 0, false
}

// SecondaryAt resolves a (prefix, index) pair back to a string.
func (d *Dictionary) SecondaryAt(prefix, index byte) (string, bool) {
	t := int(prefix) - secondaryTagStart
	if t < 0 || t >= maxSecondaryTables {
		return "", false
	}
	table := d.secondary[t]
	i := int(index)
	if i < 0 || i >= len(table) {
		return "", false
	}
	return table[i], true
}

// IsSecondaryPrefix reports whether b is a valid secondary-table selector
// byte.
func IsSecondaryPrefix(b byte) bool {
	return b >= secondaryTagStart && b < secondaryTagStart+maxSecondaryTables
}

// DefaultDictionary is a representative token table covering the tags and
// attribute values the session state machine and message processor use.
// A production deployment loads the exact table the reference client
// ships; this table is complete enough for every node shape this module
// constructs or parses.
var DefaultDictionary = NewDictionary(
	append([]string{"", "", ""}, defaultPrimaryTokens...),
	nil,
)

var defaultPrimaryTokens = []string{
	"message", "body", "from", "to", "id", "type", "t", "notify", "author",
	"participant", "participants", "iq", "xmlns", "get", "set", "result",
	"error", "code", "text", "query", "seconds", "last", "auth", "success",
	"failure", "challenge", "response", "status", "stream:features",
	"stream:error", "receipt", "ack", "notification", "presence",
	"chatstate", "composing", "paused", "media", "url", "file", "size",
	"mimetype", "filehash", "width", "height", "duration", "seconds-ago",
	"encoding", "ip", "caption", "location", "latitude", "longitude", "name",
	"thumbnail", "vcard", "group", "groups", "subject", "creation",
	"leave", "add", "remove", "picture", "pricing", "privacy", "extend",
	"props", "sync", "contact", "exist", "duplicate", "enc", "v", "av",
	"key", "user", "jid", "list", "identity", "registration", "skey",
	"count", "encrypt", "ib", "dirty", "clean", "relay", "offline",
	"pong", "ping", "server", "resource", "passive", "features", "item",
	"config", "category", "value", "owner", "w", "h", "read", "played",
	"retry", "cancel", "term",
}
