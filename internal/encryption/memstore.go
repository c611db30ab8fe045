package encryption

import (
	"fmt"
	"sync"

	"github.com/nimda/waxmpp/internal/interfaces"
)

// MemoryKeyStore is a process-memory KeyStore: every identity/pre-key/
// session record is lost on restart. Useful for tests and short-lived
// demos; production callers should supply a persistent implementation
// (see SQLKeyStore).
type MemoryKeyStore struct {
	mu         sync.Mutex
	identity   *interfaces.IdentityBundle
	preKeys    map[uint32]interfaces.PreKeyRecord
	signedKeys map[uint32]interfaces.SignedPreKeyRecord
	sessions   map[string][]byte
}

// NewMemoryKeyStore creates an empty store.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{
		preKeys:    make(map[uint32]interfaces.PreKeyRecord),
		signedKeys: make(map[uint32]interfaces.SignedPreKeyRecord),
		sessions:   make(map[string][]byte),
	}
}

func sessionKey(jid string, deviceID uint32) string {
	return fmt.Sprintf("%s:%d", jid, deviceID)
}

func (m *MemoryKeyStore) StoreLocalIdentity(bundle interfaces.IdentityBundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := bundle
	m.identity = &b
	return nil
}

func (m *MemoryKeyStore) GetLocalIdentity() (interfaces.IdentityBundle, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return interfaces.IdentityBundle{}, false, nil
	}
	return *m.identity, true, nil
}

func (m *MemoryKeyStore) StorePreKey(rec interfaces.PreKeyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preKeys[rec.ID] = rec
	return nil
}

func (m *MemoryKeyStore) GetPreKey(id uint32) (interfaces.PreKeyRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.preKeys[id]
	return rec, ok, nil
}

func (m *MemoryKeyStore) DeletePreKey(id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.preKeys, id)
	return nil
}

func (m *MemoryKeyStore) PreKeyIDs() ([]uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint32, 0, len(m.preKeys))
	for id := range m.preKeys {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MemoryKeyStore) StoreSignedPreKey(rec interfaces.SignedPreKeyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signedKeys[rec.ID] = rec
	return nil
}

func (m *MemoryKeyStore) GetSignedPreKey(id uint32) (interfaces.SignedPreKeyRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.signedKeys[id]
	return rec, ok, nil
}

func (m *MemoryKeyStore) StoreSession(jid string, deviceID uint32, session []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(session))
	copy(cp, session)
	m.sessions[sessionKey(jid, deviceID)] = cp
	return nil
}

func (m *MemoryKeyStore) LoadSession(jid string, deviceID uint32) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionKey(jid, deviceID)]
	return s, ok, nil
}

func (m *MemoryKeyStore) DeleteSession(jid string, deviceID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionKey(jid, deviceID))
	return nil
}
