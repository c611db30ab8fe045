// Package encryption implements the Signal/Axolotl end-to-end-encryption
// bridge: pre-key publication and replenishment, per-recipient session
// management, and the pending-plaintext queue that holds outbound messages
// while a recipient's pre-key bundle is still in flight.
package encryption

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/RadicalApp/libsignal-protocol-go/ecc"
	"github.com/RadicalApp/libsignal-protocol-go/keyhelper"
	"github.com/RadicalApp/libsignal-protocol-go/keys/identity"
	"github.com/RadicalApp/libsignal-protocol-go/keys/prekey"
	"github.com/RadicalApp/libsignal-protocol-go/protocol"
	"github.com/RadicalApp/libsignal-protocol-go/session"
	"github.com/RadicalApp/libsignal-protocol-go/state/record"

	"github.com/nimda/waxmpp/internal/core"
	"github.com/nimda/waxmpp/internal/interfaces"
	"github.com/nimda/waxmpp/pkg/waerrors"
	"github.com/nimda/waxmpp/pkg/walog"
)

// prekeyPoolSize is how many one-time pre-keys this client tries to keep
// published on the server at once.
const prekeyPoolSize = 200

// currentSignedPreKeyID is fixed: this client rotates its signed pre-key by
// overwriting id 1 rather than incrementing, since only one signed pre-key
// is ever active at a time.
const currentSignedPreKeyID = uint32(1)

// deviceID is fixed at 1: this protocol is single-device, unlike the
// multidevice fan-out the newer protocol generation added.
const deviceID = uint32(1)

type cipherEntry struct {
	cipher *session.Cipher
}

type pendingSend struct {
	plaintext []byte
	done      func(error)
}

// Bridge implements core.EncryptionHandler, backed by a KeyStore and a
// libsignal-protocol-go session per recipient JID. Grounded on the
// prekey-bundle / session-builder / cipher flow used in the whatsmeow
// multidevice send path, simplified from its per-device fan-out to this
// protocol's one-session-per-JID model (§4.6).
type Bridge struct {
	ks     interfaces.KeyStore
	store  *protocolStore
	sender core.Sender

	mu       sync.Mutex
	ciphers  map[string]*cipherEntry
	pending  map[string][]pendingSend
	fetching map[string]bool
	skip     map[string]bool

	// sealedBundleKey, when set, makes fetchBundle agree an X25519 shared
	// secret against this endpoint key and tag the fetch iq with a "seal"
	// attribute (the secret's first 4 bytes, hex). The ephemeral public key
	// is not sent and the response is parsed as a plain bundle either way;
	// nothing is unwrapped. Unset (the default) sends no seal attribute.
	sealedBundleKey *[32]byte
}

// NewBridge builds a Bridge over ks, sending node traffic through sender.
func NewBridge(ks interfaces.KeyStore, sender core.Sender) *Bridge {
	return &Bridge{
		ks:       ks,
		store:    newProtocolStore(ks),
		sender:   sender,
		ciphers:  make(map[string]*cipherEntry),
		pending:  make(map[string][]pendingSend),
		fetching: make(map[string]bool),
		skip:     make(map[string]bool),
	}
}

// EnableSealedBundleFetch switches bundle fetches into sealed mode against
// endpointPublicKey: each fetch agrees a fresh ephemeral shared secret and
// carries a tag derived from it (see sealedBundleKey). Responses are still
// read as plain bundles.
func (b *Bridge) EnableSealedBundleFetch(endpointPublicKey [32]byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sealedBundleKey = &endpointPublicKey
}

// sealedFetchSecret agrees a one-shot shared secret for a sealed bundle
// fetch, returning ok=false when sealed mode isn't enabled.
func (b *Bridge) sealedFetchSecret() (secret []byte, ok bool, err error) {
	b.mu.Lock()
	key := b.sealedBundleKey
	b.mu.Unlock()
	if key == nil {
		return nil, false, nil
	}
	_, private, err := generateEphemeralKeyPair()
	if err != nil {
		return nil, true, err
	}
	secret, err = sealedBundleSharedSecret(private, *key)
	if err != nil {
		return nil, true, err
	}
	return secret, true, nil
}

// AfterLogin ensures a local identity and pre-key pool exist, generating
// and publishing them on first run.
func (b *Bridge) AfterLogin() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok, _ := b.ks.GetLocalIdentity(); ok {
		return
	}
	if err := b.generateLocalIdentityLocked(); err != nil {
		walog.Error().Err(err).Msg("encryption: generating local identity")
		return
	}
	if err := b.publishKeysLocked(prekeyPoolSize); err != nil {
		walog.Warn().Err(err).Msg("encryption: publishing initial pre-key pool")
	}
}

func (b *Bridge) generateLocalIdentityLocked() error {
	idKeyPair, err := keyhelper.GenerateIdentityKeyPair()
	if err != nil {
		return fmt.Errorf("encryption: generating identity key pair: %w", err)
	}
	regID := keyhelper.GenerateRegistrationId()

	if err := b.ks.StoreLocalIdentity(interfaces.IdentityBundle{
		RegistrationID:  regID,
		IdentityPublic:  idKeyPair.PublicKey().PublicKey().Serialize(),
		IdentityPrivate: idKeyPair.PrivateKey().Serialize(),
	}); err != nil {
		return err
	}
	return nil
}

// publishKeysLocked tops up the one-time pre-key pool to target entries and
// (re)signs the signed pre-key, then sends the server an `iq set` with the
// identity, signed pre-key, and new one-time pre-keys (§4.6).
func (b *Bridge) publishKeysLocked(target int) error {
	bundle, ok, err := b.ks.GetLocalIdentity()
	if err != nil || !ok {
		return fmt.Errorf("encryption: no local identity to publish")
	}
	idKeyPair := identity.NewKeyPair(
		identity.NewKey(ecc.NewDjbECPublicKey(to32(bundle.IdentityPublic))),
		ecc.NewDjbECPrivateKey(to32(bundle.IdentityPrivate)),
	)

	existingIDs, err := b.ks.PreKeyIDs()
	if err != nil {
		return err
	}
	need := target - len(existingIDs)
	if need < 0 {
		need = 0
	}
	// Sequential, not random, ids: see DESIGN.md's pre-key-id note.
	start := uint32(1)
	for _, id := range existingIDs {
		if id >= start {
			start = id + 1
		}
	}

	newKeys := keyhelper.GeneratePreKeys(uint(start), uint(need), serializer.PreKeyRecord)
	for _, rec := range newKeys {
		pair := rec.KeyPair()
		if err := b.ks.StorePreKey(interfaces.PreKeyRecord{
			ID:      rec.ID().Value,
			Public:  pair.PublicKey().Serialize(),
			Private: pair.PrivateKey().Serialize(),
		}); err != nil {
			return err
		}
	}

	signedRec, err := keyhelper.GenerateSignedPreKey(idKeyPair, currentSignedPreKeyID, serializer.SignedPreKeyRecord)
	if err != nil {
		return fmt.Errorf("encryption: generating signed pre-key: %w", err)
	}
	pair := signedRec.KeyPair()
	if err := b.ks.StoreSignedPreKey(interfaces.SignedPreKeyRecord{
		ID:        currentSignedPreKeyID,
		Public:    pair.PublicKey().Serialize(),
		Private:   pair.PrivateKey().Serialize(),
		Signature: signedRec.Signature(),
		Timestamp: signedRec.Timestamp(),
	}); err != nil {
		return err
	}

	node := core.NewNode("iq").
		SetAttr("id", b.sender.NextMessageId("encrypt")).
		SetAttr("type", "set").
		SetAttr("to", "s.whatsapp.net").
		AddChild(b.buildKeysNode(idKeyPair, signedRec, newKeys))

	return b.sender.SendIQ(node, func(result *core.Node, err error) {
		if err != nil {
			walog.Warn().Err(err).Msg("encryption: publishing pre-keys")
		}
	})
}

func (b *Bridge) buildKeysNode(idKeyPair *identity.KeyPair, signed *record.SignedPreKey, newKeys []*record.PreKey) *core.Node {
	n := core.NewNode("encrypt").SetAttr("xmlns", "encrypt")
	n.AddChild(core.NewNode("identity").SetPayload(idKeyPair.PublicKey().PublicKey().Serialize()))

	skey := core.NewNode("skey")
	skey.AddChild(core.NewNode("id").SetPayload(be24(signed.ID())))
	skey.AddChild(core.NewNode("value").SetPayload(signed.KeyPair().PublicKey().Serialize()))
	skey.AddChild(core.NewNode("signature").SetPayload(signed.Signature()))
	n.AddChild(skey)

	list := core.NewNode("list")
	for _, rec := range newKeys {
		k := core.NewNode("key")
		k.AddChild(core.NewNode("id").SetPayload(be24(rec.ID().Value)))
		k.AddChild(core.NewNode("value").SetPayload(rec.KeyPair().PublicKey().Serialize()))
		list.AddChild(k)
	}
	n.AddChild(list)
	return n
}

// OnEncryptNotification replenishes the pre-key pool when the server
// reports count remaining keys below the target.
func (b *Bridge) OnEncryptNotification(count int) {
	if count >= prekeyPoolSize {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.publishKeysLocked(prekeyPoolSize); err != nil {
		walog.Warn().Err(err).Msg("encryption: replenishing pre-keys")
	}
}

// OnPreKeyIQResult is currently unused: every pre-key exchange this bridge
// issues is matched through Sender.SendIQ's own id-tracked callback, so no
// iq ever needs a second, unsolicited dispatch path. Kept on the interface
// in case a future server push (unprompted re-key) needs one.
func (b *Bridge) OnPreKeyIQResult(id string, result *core.Node) bool {
	return false
}

// ErrSkipEncryption is returned by EncryptAndSend for a recipient
// previously marked as not supporting end-to-end encryption; the caller
// should fall back to a plaintext send.
var ErrSkipEncryption = fmt.Errorf("encryption: recipient does not support end-to-end encryption")

// EncryptAndSend encrypts plaintext for jid and sends it as a `message`
// node with an `enc` child. If no session exists yet, the bundle fetch is
// started and plaintext is queued until it resolves (§4.6 pending-message
// queue).
func (b *Bridge) EncryptAndSend(jid, msgID string, plaintext []byte) error {
	b.mu.Lock()
	if b.skip[jid] {
		b.mu.Unlock()
		return ErrSkipEncryption
	}
	if entry, ok := b.ciphers[jid]; ok {
		b.mu.Unlock()
		return b.sendCiphertext(jid, msgID, entry, plaintext)
	}
	if _, ok, err := b.ks.LoadSession(jid, deviceID); err == nil && ok {
		entry := b.buildCipherFromStore(jid)
		b.ciphers[jid] = entry
		b.mu.Unlock()
		return b.sendCiphertext(jid, msgID, entry, plaintext)
	}

	b.pending[jid] = append(b.pending[jid], pendingSend{plaintext: plaintext})
	alreadyFetching := b.fetching[jid]
	b.fetching[jid] = true
	b.mu.Unlock()

	if alreadyFetching {
		return nil
	}
	return b.fetchBundle(jid)
}

// buildCipherFromStore builds a Cipher for a jid whose session record is
// already in the KeyStore (a prior ProcessBundle or incoming prekey
// message already established it).
func (b *Bridge) buildCipherFromStore(jid string) *cipherEntry {
	address := protocol.NewSignalAddress(jid, deviceID)
	builder := session.NewBuilder(b.store, b.store, b.store, b.store, address, serializer)
	return &cipherEntry{cipher: session.NewCipher(builder, address)}
}

func (b *Bridge) sendCiphertext(jid, msgID string, entry *cipherEntry, plaintext []byte) error {
	ciphertext, err := entry.cipher.Encrypt(plaintext)
	if err != nil {
		return waerrors.NewEncryptionError(jid, err)
	}
	enc := core.NewNode("enc").SetAttr("v", "2").SetAttr("type", ciphertextType(ciphertext)).SetPayload(ciphertext.Serialize())
	msg := core.NewNode("message").
		SetAttr("id", msgID).
		SetAttr("type", "text").
		SetAttr("to", jid).
		AddChild(enc)
	return b.sender.SendNode(msg)
}

func ciphertextType(msg interface{ Type() uint32 }) string {
	const prekeyType = 3
	if msg.Type() == prekeyType {
		return "pkmsg"
	}
	return "msg"
}

// OnInboundEncrypted decrypts the <enc> child of an inbound message (§4.6).
// type="pkmsg" carries a pre-key message: the first one from a peer
// establishes the session, via the same store-backed builder onBundleResult
// uses for outbound sessions. type="msg" is a normal Whisper message against
// an already-established session. Either way the session record mutated by
// the decrypt is written back through b.store (protocolStore.StoreSession),
// since that's the store the cipher's builder was constructed with.
func (b *Bridge) OnInboundEncrypted(msg *core.Node, enc *core.Node) ([]byte, error) {
	jid := msg.AttrOr("from", "")

	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.ciphers[jid]
	if !ok {
		entry = b.buildCipherFromStore(jid)
	}

	switch enc.AttrOr("type", "") {
	case "pkmsg":
		pkmsg, err := protocol.NewPreKeySignalMessageFromBytes(enc.Payload, serializer.PreKeySignalMessage, serializer.SignalMessage)
		if err != nil {
			return nil, waerrors.NewEncryptionError(jid, fmt.Errorf("parsing prekey message: %w", err))
		}
		plaintext, err := entry.cipher.DecryptMessage(pkmsg)
		if err != nil {
			return nil, waerrors.NewEncryptionError(jid, err)
		}
		b.ciphers[jid] = entry
		delete(b.skip, jid)
		return plaintext, nil
	case "msg":
		signalMsg, err := protocol.NewSignalMessageFromBytes(enc.Payload, serializer.SignalMessage)
		if err != nil {
			return nil, waerrors.NewEncryptionError(jid, fmt.Errorf("parsing signal message: %w", err))
		}
		plaintext, err := entry.cipher.Decrypt(signalMsg)
		if err != nil {
			return nil, waerrors.NewEncryptionError(jid, err)
		}
		b.ciphers[jid] = entry
		return plaintext, nil
	default:
		return nil, waerrors.NewEncryptionError(jid, fmt.Errorf("unknown enc type %q", enc.AttrOr("type", "")))
	}
}

func (b *Bridge) fetchBundle(jid string) error {
	req := core.NewNode("iq").
		SetAttr("id", b.sender.NextMessageId("getkeys")).
		SetAttr("type", "get").
		SetAttr("to", "s.whatsapp.net").
		SetAttr("xmlns", "encrypt").
		AddChild(core.NewNode("key").AddChild(core.NewNode("user").SetAttr("jid", jid)))

	if secret, sealed, err := b.sealedFetchSecret(); sealed {
		if err != nil {
			return fmt.Errorf("encryption: sealing bundle fetch: %w", err)
		}
		req.SetAttr("seal", fmt.Sprintf("%x", secret[:4]))
	}

	return b.sender.SendIQ(req, func(result *core.Node, err error) {
		if err != nil {
			b.failPending(jid, waerrors.NewEncryptionError(jid, err))
			return
		}
		// The tracker resolves this callback with the session mutex held;
		// sending the queued messages takes that mutex again.
		go b.onBundleResult(jid, result)
	})
}

func (b *Bridge) onBundleResult(jid string, result *core.Node) {
	userNode := findUser(result, jid)
	if userNode == nil {
		walog.Warn().Str("jid", jid).Msg("encryption: peer has no published keys, marking skip")
		b.mu.Lock()
		b.skip[jid] = true
		delete(b.fetching, jid)
		b.mu.Unlock()
		b.failPending(jid, ErrSkipEncryption)
		return
	}

	bundle, err := parseBundle(userNode)
	if err != nil {
		b.failPending(jid, waerrors.NewEncryptionError(jid, err))
		return
	}

	address := protocol.NewSignalAddress(jid, deviceID)
	builder := session.NewBuilder(b.store, b.store, b.store, b.store, address, serializer)
	if err := builder.ProcessBundle(bundle.toLibsignal()); err != nil {
		b.failPending(jid, waerrors.NewEncryptionError(jid, err))
		return
	}
	cipher := session.NewCipher(builder, address)
	entry := &cipherEntry{cipher: cipher}

	b.mu.Lock()
	b.ciphers[jid] = entry
	delete(b.fetching, jid)
	queued := b.pending[jid]
	delete(b.pending, jid)
	b.mu.Unlock()

	for _, send := range queued {
		err := b.sendCiphertext(jid, b.sender.NextMessageId("msg"), entry, send.plaintext)
		if send.done != nil {
			send.done(err)
		} else if err != nil {
			walog.Warn().Err(err).Str("jid", jid).Msg("encryption: sending queued message")
		}
	}
}

func (b *Bridge) failPending(jid string, err error) {
	b.mu.Lock()
	queued := b.pending[jid]
	delete(b.pending, jid)
	delete(b.fetching, jid)
	b.mu.Unlock()
	for _, send := range queued {
		if send.done != nil {
			send.done(err)
		}
	}
}

func findUser(result *core.Node, jid string) *core.Node {
	list := result.Child("list")
	if list == nil {
		return nil
	}
	for _, u := range list.Children {
		if u.Tag == "user" && u.AttrOr("jid", "") == jid {
			return u
		}
	}
	return nil
}

// prekeyBundle holds a peer's published keys in plain byte form, parsed
// from the wire before being handed to libsignal-protocol-go's typed
// prekey.Bundle constructor.
type prekeyBundle struct {
	registrationID uint32
	identityPublic []byte
	signedID       uint32
	signedPublic   []byte
	signature      []byte
	hasPreKey      bool
	preKeyID       uint32
	preKeyPublic   []byte
}

func (pb *prekeyBundle) toLibsignal() *prekey.Bundle {
	identityKey := identity.NewKey(ecc.NewDjbECPublicKey(to32(pb.identityPublic)))
	signedPublic := ecc.NewDjbECPublicKey(to32(pb.signedPublic))

	var preKeyID *uint32
	var preKeyPublic ecc.ECPublicKeyable
	if pb.hasPreKey {
		id := pb.preKeyID
		preKeyID = &id
		preKeyPublic = ecc.NewDjbECPublicKey(to32(pb.preKeyPublic))
	}

	return prekey.NewBundle(
		pb.registrationID,
		deviceID,
		preKeyID,
		preKeyPublic,
		pb.signedID,
		signedPublic,
		pb.signature,
		identityKey,
	)
}

func parseBundle(userNode *core.Node) (*prekeyBundle, error) {
	identityNode := userNode.Child("identity")
	skeyNode := userNode.Child("skey")
	if identityNode == nil || skeyNode == nil {
		return nil, fmt.Errorf("bundle missing identity or signed pre-key")
	}
	registrationID := uint32(0)
	if reg := userNode.Child("registration"); reg != nil && len(reg.Payload) >= 4 {
		registrationID = binary.BigEndian.Uint32(reg.Payload)
	}

	signedID := decodeBE24(childPayload(skeyNode, "id"))
	signedPublic := childPayload(skeyNode, "value")
	signature := childPayload(skeyNode, "signature")

	var preKeyID uint32
	var preKeyPublic []byte
	hasPreKey := false
	if keyNode := userNode.Child("key"); keyNode != nil {
		preKeyID = decodeBE24(childPayload(keyNode, "id"))
		preKeyPublic = childPayload(keyNode, "value")
		hasPreKey = true
	}

	return &prekeyBundle{
		registrationID: registrationID,
		identityPublic: identityNode.Payload,
		signedID:       signedID,
		signedPublic:   signedPublic,
		signature:      signature,
		hasPreKey:      hasPreKey,
		preKeyID:       preKeyID,
		preKeyPublic:   preKeyPublic,
	}, nil
}

func childPayload(n *core.Node, tag string) []byte {
	if c := n.Child(tag); c != nil {
		return c.Payload
	}
	return nil
}

func be24(id uint32) []byte {
	return []byte{byte(id >> 16), byte(id >> 8), byte(id)}
}

func decodeBE24(b []byte) uint32 {
	if len(b) < 3 {
		return 0
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
