package encryption

import (
	"github.com/RadicalApp/libsignal-protocol-go/ecc"
	"github.com/RadicalApp/libsignal-protocol-go/keys/identity"
	"github.com/RadicalApp/libsignal-protocol-go/protocol"
	"github.com/RadicalApp/libsignal-protocol-go/serialize"
	"github.com/RadicalApp/libsignal-protocol-go/state/record"

	"github.com/nimda/waxmpp/internal/interfaces"
)

// serializer is the single wire format used for every libsignal record this
// bridge persists through a KeyStore, matching the JSON serializer the
// reference client wires up when it isn't also speaking to a protobuf-based
// multidevice peer.
var serializer = serialize.NewJSONSerializer()

// protocolStore adapts our own interfaces.KeyStore (plain structs and byte
// slices, easy to persist to SQL or a file) onto libsignal-protocol-go's
// four store interfaces, which want typed key-pair and record objects.
// Grounded on the store usage in the whatsmeow client's multidevice send
// path, which passes one composite store value everywhere a
// *Builder/*Cipher wants a narrower store interface.
type protocolStore struct {
	ks interfaces.KeyStore
}

func newProtocolStore(ks interfaces.KeyStore) *protocolStore {
	return &protocolStore{ks: ks}
}

// -- identity key store --

func (s *protocolStore) GetIdentityKeyPair() *identity.KeyPair {
	bundle, ok, err := s.ks.GetLocalIdentity()
	if err != nil || !ok {
		return nil
	}
	pub := ecc.NewDjbECPublicKey(to32(bundle.IdentityPublic))
	priv := ecc.NewDjbECPrivateKey(to32(bundle.IdentityPrivate))
	return identity.NewKeyPair(identity.NewKey(pub), priv)
}

func (s *protocolStore) GetLocalRegistrationId() uint32 {
	bundle, ok, err := s.ks.GetLocalIdentity()
	if err != nil || !ok {
		return 0
	}
	return bundle.RegistrationID
}

func (s *protocolStore) SaveIdentity(address *protocol.SignalAddress, identityKey *identity.Key) {
	// The peer's identity key is not recorded and not verified;
	// IsTrustedIdentity accepts every key, including one that changed.
	_ = address
	_ = identityKey
}

func (s *protocolStore) IsTrustedIdentity(address *protocol.SignalAddress, identityKey *identity.Key) bool {
	return true
}

// -- pre-key store --

func (s *protocolStore) LoadPreKey(id uint32) *record.PreKey {
	rec, ok, err := s.ks.GetPreKey(id)
	if err != nil || !ok {
		return nil
	}
	pair := eccPair(rec.Public, rec.Private)
	return record.NewPreKey(id, pair, serializer.PreKeyRecord)
}

func (s *protocolStore) StorePreKey(id uint32, preKeyRecord *record.PreKey) {
	pair := preKeyRecord.KeyPair()
	_ = s.ks.StorePreKey(interfaces.PreKeyRecord{
		ID:      id,
		Public:  pair.PublicKey().Serialize(),
		Private: pair.PrivateKey().Serialize(),
	})
}

func (s *protocolStore) ContainsPreKey(id uint32) bool {
	_, ok, err := s.ks.GetPreKey(id)
	return err == nil && ok
}

func (s *protocolStore) RemovePreKey(id uint32) {
	_ = s.ks.DeletePreKey(id)
}

// -- signed pre-key store --

func (s *protocolStore) LoadSignedPreKey(id uint32) *record.SignedPreKey {
	rec, ok, err := s.ks.GetSignedPreKey(id)
	if err != nil || !ok {
		return nil
	}
	pair := eccPair(rec.Public, rec.Private)
	return record.NewSignedPreKey(id, rec.Timestamp, pair, rec.Signature, serializer.SignedPreKeyRecord)
}

func (s *protocolStore) LoadSignedPreKeys() []*record.SignedPreKey {
	rec, ok, err := s.ks.GetSignedPreKey(currentSignedPreKeyID)
	if err != nil || !ok {
		return nil
	}
	pair := eccPair(rec.Public, rec.Private)
	return []*record.SignedPreKey{record.NewSignedPreKey(rec.ID, rec.Timestamp, pair, rec.Signature, serializer.SignedPreKeyRecord)}
}

func (s *protocolStore) StoreSignedPreKey(id uint32, signedPreKeyRecord *record.SignedPreKey) {
	pair := signedPreKeyRecord.KeyPair()
	_ = s.ks.StoreSignedPreKey(interfaces.SignedPreKeyRecord{
		ID:        id,
		Public:    pair.PublicKey().Serialize(),
		Private:   pair.PrivateKey().Serialize(),
		Signature: signedPreKeyRecord.Signature(),
		Timestamp: signedPreKeyRecord.Timestamp(),
	})
}

func (s *protocolStore) ContainsSignedPreKey(id uint32) bool {
	_, ok, err := s.ks.GetSignedPreKey(id)
	return err == nil && ok
}

func (s *protocolStore) RemoveSignedPreKey(id uint32) {}

// -- session store --

func (s *protocolStore) LoadSession(address *protocol.SignalAddress) *record.Session {
	raw, ok, err := s.ks.LoadSession(address.Name(), uint32(address.DeviceId()))
	if err != nil || !ok {
		return record.NewSession(serializer.Session, serializer.State)
	}
	sess, err := record.NewSessionFromBytes(raw, serializer.Session, serializer.State)
	if err != nil {
		return record.NewSession(serializer.Session, serializer.State)
	}
	return sess
}

func (s *protocolStore) GetSubDeviceSessions(name string) []uint32 {
	return nil
}

func (s *protocolStore) ContainsSession(address *protocol.SignalAddress) bool {
	_, ok, err := s.ks.LoadSession(address.Name(), uint32(address.DeviceId()))
	return err == nil && ok
}

func (s *protocolStore) StoreSession(address *protocol.SignalAddress, record *record.Session) {
	_ = s.ks.StoreSession(address.Name(), uint32(address.DeviceId()), record.Serialize())
}

func (s *protocolStore) DeleteSession(address *protocol.SignalAddress) {
	_ = s.ks.DeleteSession(address.Name(), uint32(address.DeviceId()))
}

func (s *protocolStore) DeleteAllSessions() {}

func eccPair(public, private []byte) *ecc.ECKeyPair {
	pub := ecc.NewDjbECPublicKey(to32(public))
	priv := ecc.NewDjbECPrivateKey(to32(private))
	return ecc.NewECKeyPair(pub, priv)
}

func to32(b []byte) [32]byte {
	var out [32]byte
	copy(out[:], b)
	return out
}
