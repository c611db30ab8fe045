package interfaces

// IdentityBundle is the local Signal/Axolotl identity: a long-term
// identity key pair plus the registration id the server associates with
// this device.
type IdentityBundle struct {
	RegistrationID  uint32
	IdentityPublic  []byte
	IdentityPrivate []byte
}

// PreKeyRecord is one one-time pre-key: an id plus its EC key pair.
type PreKeyRecord struct {
	ID      uint32
	Public  []byte
	Private []byte
}

// SignedPreKeyRecord is the signed pre-key: an id, its EC key pair, the
// signature over the public key made with the identity key, and the time
// it was generated.
type SignedPreKeyRecord struct {
	ID        uint32
	Public    []byte
	Private   []byte
	Signature []byte
	Timestamp int64
}

// KeyStore is the persistence contract the encryption bridge is built
// against (§6): local identity, the one-time and signed pre-key pools, and
// per-(jid,deviceId) session records. Session blobs are opaque — the
// bridge is responsible for serializing/deserializing them with whatever
// wire format its Signal library implementation expects.
type KeyStore interface {
	StoreLocalIdentity(bundle IdentityBundle) error
	GetLocalIdentity() (IdentityBundle, bool, error)

	StorePreKey(rec PreKeyRecord) error
	GetPreKey(id uint32) (PreKeyRecord, bool, error)
	DeletePreKey(id uint32) error
	PreKeyIDs() ([]uint32, error)

	StoreSignedPreKey(rec SignedPreKeyRecord) error
	GetSignedPreKey(id uint32) (SignedPreKeyRecord, bool, error)

	StoreSession(jid string, deviceID uint32, session []byte) error
	LoadSession(jid string, deviceID uint32) ([]byte, bool, error)
	DeleteSession(jid string, deviceID uint32) error
}
