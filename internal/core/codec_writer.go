package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Writer encodes Node trees into the compact binary framing described in
// §4.2. A Writer with no KeyStream installed emits plaintext frames (used
// during the pre-login handshake); once InstallKeyStream is called, every
// subsequent frame is RC4-enciphered with an embedded HMAC tag.
type Writer struct {
	dict       *Dictionary
	ks         *KeyStream
	wroteStart bool
}

// NewWriter creates a Writer against the given dictionary.
func NewWriter(dict *Dictionary) *Writer {
	return &Writer{dict: dict}
}

// InstallKeyStream switches the writer into encrypted-frame mode.
func (w *Writer) InstallKeyStream(ks *KeyStream) {
	w.ks = ks
}

// StreamHeader renders the one-time stream prologue: the fixed 3-byte
// message_start magic, then a short-list-encoded (server, resource) tuple,
// matching §4.2 and §6 ("stream prologue is a fixed 3-byte message_start
// magic, then the writer stream header").
func (w *Writer) StreamHeader(server, resource string) []byte {
	var buf bytes.Buffer
	buf.WriteByte('W')
	buf.WriteByte('A')
	buf.WriteByte(1)
	w.writeListOpener(&buf, 2)
	w.writeString(&buf, server)
	w.writeString(&buf, resource)
	w.wroteStart = true
	return buf.Bytes()
}

// Node serializes a single node into a length-prefixed frame: plaintext if
// no KeyStream is installed, otherwise RC4-enciphered with a leading 4-byte
// HMAC tag as specified in §4.2 ("MAC precedes the ciphered payload").
func (w *Writer) Node(n *Node) ([]byte, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	var tree bytes.Buffer
	if err := w.writeNode(&tree, n); err != nil {
		return nil, err
	}
	body := tree.Bytes()

	if w.ks == nil {
		hdr := encodeFrameHeader(len(body), false)
		out := make([]byte, 0, 3+len(body))
		out = append(out, hdr[:]...)
		out = append(out, body...)
		return out, nil
	}

	framed := make([]byte, macSize+len(body))
	copy(framed[macSize:], body)
	if err := w.ks.Encode(framed, 0, macSize, len(body)); err != nil {
		return nil, err
	}
	hdr := encodeFrameHeader(len(framed), true)
	out := make([]byte, 0, 3+len(framed))
	out = append(out, hdr[:]...)
	out = append(out, framed...)
	return out, nil
}

func (w *Writer) writeNode(buf *bytes.Buffer, n *Node) error {
	w.writeListOpener(buf, n.elementCount())
	w.writeTag(buf, n.Tag)
	for _, key := range n.AttrKeys() {
		val, _ := n.Attr(key)
		w.writeString(buf, key)
		w.writeString(buf, val)
	}
	switch {
	case len(n.Children) > 0:
		w.writeListOpener(buf, len(n.Children))
		for _, c := range n.Children {
			if err := w.writeNode(buf, c); err != nil {
				return err
			}
		}
	case n.Payload != nil:
		w.writeBinary(buf, n.Payload)
	}
	return nil
}

func (w *Writer) writeListOpener(buf *bytes.Buffer, count int) {
	switch {
	case count == 0:
		buf.WriteByte(tagListEmpty)
	case count <= 255:
		buf.WriteByte(tagListShort)
		buf.WriteByte(byte(count))
	default:
		buf.WriteByte(tagListMedium)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(count))
		buf.Write(b[:])
	}
}

func (w *Writer) writeTag(buf *bytes.Buffer, tag string) {
	w.writeString(buf, tag)
}

// writeString picks the most compact encoding available: a primary
// dictionary token, a secondary dictionary token, a packed nibble/hex
// string, or a length-prefixed literal as a last resort.
func (w *Writer) writeString(buf *bytes.Buffer, s string) {
	if tok, ok := w.dict.PrimaryToken(s); ok {
		buf.WriteByte(tok)
		return
	}
	if prefix, idx, ok := w.dict.SecondaryToken(s); ok {
		buf.WriteByte(prefix)
		buf.WriteByte(idx)
		return
	}
	if isNibbleString(s) {
		buf.WriteByte(tagNibble8)
		buf.WriteByte(byte(len(s)))
		buf.Write(packNibbleLike(s, nibbleReverse))
		return
	}
	if isHexString(s) {
		buf.WriteByte(tagHex8)
		buf.WriteByte(byte(len(s)))
		buf.Write(packNibbleLike(s, hexReverse))
		return
	}
	w.writeLiteral(buf, []byte(s))
}

func (w *Writer) writeLiteral(buf *bytes.Buffer, data []byte) {
	if len(data) <= 255 {
		buf.WriteByte(tagLiteral8)
		buf.WriteByte(byte(len(data)))
		buf.Write(data)
		return
	}
	buf.WriteByte(tagLiteral16)
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(len(data)))
	buf.Write(b[:])
	buf.Write(data)
}

// writeBinary emits an opaque payload using the most compact length-prefix
// form that fits (BINARY_8/20/32 per §4.2).
func (w *Writer) writeBinary(buf *bytes.Buffer, data []byte) {
	switch {
	case len(data) <= 0xff:
		buf.WriteByte(tagBinary8)
		buf.WriteByte(byte(len(data)))
	case len(data) <= 0xffff:
		buf.WriteByte(tagBinary20)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(len(data)))
		buf.Write(b[:])
	default:
		buf.WriteByte(tagBinary32)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(len(data)))
		buf.Write(b[:])
	}
	buf.Write(data)
}

var errUnsupportedToken = fmt.Errorf("core: unsupported token")
