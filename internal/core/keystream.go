package core

import (
	"crypto/hmac"
	"crypto/rc4"
	"crypto/sha1"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// macSize is the length, in bytes, of the truncated HMAC-SHA1 tag embedded
// in every encrypted frame.
const macSize = 4

// dropBytes is the amount of RC4 keystream discarded before first use, the
// same drop-768 tweak the reference client's WebFig encryption uses.
const dropBytes = 768

// KeyStream is the per-direction symmetric framing primitive: an RC4
// cipher seeded with a drop-768 warmup, plus an HMAC-SHA1 MAC (truncated to
// 4 bytes) over the ciphertext and a monotonic sequence counter. Reader and
// writer each own an independent KeyStream instance; sequence numbers must
// never be reused across directions.
type KeyStream struct {
	cipher *rc4.Cipher
	macKey []byte
	seq    uint32
}

// NewKeyStream builds a KeyStream from a 20-byte cipher key and a 20-byte
// MAC key, discarding dropBytes of keystream before returning.
func NewKeyStream(cipherKey, macKey []byte) (*KeyStream, error) {
	c, err := rc4.NewCipher(cipherKey)
	if err != nil {
		return nil, fmt.Errorf("core: rc4 init: %w", err)
	}
	drop := make([]byte, dropBytes)
	c.XORKeyStream(drop, drop)

	mk := make([]byte, len(macKey))
	copy(mk, macKey)

	return &KeyStream{cipher: c, macKey: mk}, nil
}

// Seq returns the current sequence counter (for tests/diagnostics).
func (k *KeyStream) Seq() uint32 { return k.seq }

// mac computes HMAC-SHA1(macKey, ciphertext || be32(seq)), truncated to
// macSize bytes, then advances the sequence counter.
func (k *KeyStream) mac(ciphertext []byte) []byte {
	h := hmac.New(sha1.New, k.macKey)
	h.Write(ciphertext)
	var seqBytes [4]byte
	binary.BigEndian.PutUint32(seqBytes[:], k.seq)
	h.Write(seqBytes[:])
	sum := h.Sum(nil)
	k.seq++
	return sum[:macSize]
}

// Encode RC4-enciphers buf[offset:offset+length] in place, computes the MAC
// over the resulting ciphertext, and splices the first macSize MAC bytes
// into buf at macOffset. macOffset and the ciphertext region may overlap
// arbitrarily; callers typically lay out [mac][ciphertext] contiguously.
func (k *KeyStream) Encode(buf []byte, macOffset, offset, length int) error {
	region := buf[offset : offset+length]
	k.cipher.XORKeyStream(region, region)
	tag := k.mac(region)
	copy(buf[macOffset:macOffset+macSize], tag)
	return nil
}

// Decode verifies the macSize MAC bytes at macOffset against an HMAC
// computed over buf[offset:offset+length] (the ciphertext), then RC4-
// deciphers that region in place. Returns ErrMacMismatch without advancing
// the cipher state's usable output if verification fails; the sequence
// counter still advances (sequence numbers are spent whether or not the
// frame validates, matching the reference protocol — a single corrupted
// frame desynchronizes the stream and is fatal regardless).
func (k *KeyStream) Decode(buf []byte, macOffset, offset, length int) error {
	region := buf[offset : offset+length]
	want := k.mac(region)
	got := buf[macOffset : macOffset+macSize]
	if !hmac.Equal(want, got) {
		return ErrMacMismatch
	}
	k.cipher.XORKeyStream(region, region)
	return nil
}

// ErrMacMismatch is returned by Decode when the embedded MAC does not match
// the computed HMAC. It is always fatal to the stream (see §7 MacError).
var ErrMacMismatch = fmt.Errorf("core: keystream MAC mismatch")

// KeyDerivation computes the four keystream key halves from the
// registration password and the server-issued nonce via PBKDF2-SHA1 with
// iteration count 2, salt nonce||byte(j) for j in 1..4.
type KeyDerivation struct{}

// DerivedKeys holds the four 20-byte outputs of deriveKeys: the writer uses
// WriterCipherKey/WriterMacKey, the reader uses ReaderCipherKey/ReaderMacKey.
type DerivedKeys struct {
	WriterCipherKey []byte
	WriterMacKey    []byte
	ReaderCipherKey []byte
	ReaderMacKey    []byte
}

// DeriveKeys runs PBKDF2-SHA1(password, nonce||byte(j), iter=2, keyLen=20)
// for j in {1,2,3,4} and assigns the four outputs in order.
func DeriveKeys(password []byte, nonce []byte) *DerivedKeys {
	out := make([][]byte, 4)
	for j := 1; j <= 4; j++ {
		salt := append(append([]byte{}, nonce...), byte(j))
		out[j-1] = pbkdf2.Key(password, salt, 2, 20, sha1.New)
	}
	return &DerivedKeys{
		WriterCipherKey: out[0],
		WriterMacKey:    out[1],
		ReaderCipherKey: out[2],
		ReaderMacKey:    out[3],
	}
}

// NewWriterKeyStream builds the writer-direction KeyStream from derived keys.
func (k *DerivedKeys) NewWriterKeyStream() (*KeyStream, error) {
	return NewKeyStream(k.WriterCipherKey, k.WriterMacKey)
}

// NewReaderKeyStream builds the reader-direction KeyStream from derived keys.
func (k *DerivedKeys) NewReaderKeyStream() (*KeyStream, error) {
	return NewKeyStream(k.ReaderCipherKey, k.ReaderMacKey)
}
