package core

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// decodeLegacyLatin1 converts a byte string that failed UTF-8 validation
// into UTF-8 under the assumption it's ISO-8859-1 — the legacy encoding
// older feature-phone clients used for vCard and status payloads before the
// protocol required UTF-8 everywhere. Returns s unchanged if the
// transform fails.
func decodeLegacyLatin1(s []byte) string {
	out, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), s)
	if err != nil {
		return string(s)
	}
	return string(out)
}

// isValidUTF8 reports whether b is well-formed UTF-8.
func isValidUTF8(b []byte) bool {
	return utf8.Valid(b)
}

// NormalizeText decodes payload as UTF-8 if valid, falling back to the
// legacy ISO-8859-1 interpretation for vCard/status payloads from clients
// too old to speak UTF-8.
func NormalizeText(payload []byte) string {
	if isValidUTF8(payload) {
		return string(payload)
	}
	return decodeLegacyLatin1(payload)
}
