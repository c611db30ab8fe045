package encryption

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nimda/waxmpp/internal/interfaces"
)

// SQLKeyStore is a Postgres-backed interfaces.KeyStore, for callers who
// need identity/pre-key/session state to survive a restart. The schema is
// intentionally narrow: one row per local identity, one per pre-key, one
// per signed pre-key, one per (jid, device) session.
type SQLKeyStore struct {
	pool *pgxpool.Pool
}

// NewSQLKeyStore opens a pool against dsn and ensures the backing tables
// exist.
func NewSQLKeyStore(ctx context.Context, dsn string) (*SQLKeyStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("encryption: connecting to key store database: %w", err)
	}
	s := &SQLKeyStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLKeyStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS local_identity (
	id SMALLINT PRIMARY KEY DEFAULT 1,
	registration_id INTEGER NOT NULL,
	identity_public BYTEA NOT NULL,
	identity_private BYTEA NOT NULL
);
CREATE TABLE IF NOT EXISTS pre_keys (
	id INTEGER PRIMARY KEY,
	public BYTEA NOT NULL,
	private BYTEA NOT NULL
);
CREATE TABLE IF NOT EXISTS signed_pre_keys (
	id INTEGER PRIMARY KEY,
	public BYTEA NOT NULL,
	private BYTEA NOT NULL,
	signature BYTEA NOT NULL,
	ts BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions (
	jid TEXT NOT NULL,
	device_id INTEGER NOT NULL,
	session BYTEA NOT NULL,
	PRIMARY KEY (jid, device_id)
);
`)
	if err != nil {
		return fmt.Errorf("encryption: migrating key store schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *SQLKeyStore) Close() { s.pool.Close() }

func (s *SQLKeyStore) StoreLocalIdentity(bundle interfaces.IdentityBundle) error {
	_, err := s.pool.Exec(context.Background(), `
INSERT INTO local_identity (id, registration_id, identity_public, identity_private)
VALUES (1, $1, $2, $3)
ON CONFLICT (id) DO UPDATE SET registration_id = $1, identity_public = $2, identity_private = $3
`, bundle.RegistrationID, bundle.IdentityPublic, bundle.IdentityPrivate)
	return err
}

func (s *SQLKeyStore) GetLocalIdentity() (interfaces.IdentityBundle, bool, error) {
	var b interfaces.IdentityBundle
	err := s.pool.QueryRow(context.Background(),
		`SELECT registration_id, identity_public, identity_private FROM local_identity WHERE id = 1`,
	).Scan(&b.RegistrationID, &b.IdentityPublic, &b.IdentityPrivate)
	if err != nil {
		return interfaces.IdentityBundle{}, false, nil
	}
	return b, true, nil
}

func (s *SQLKeyStore) StorePreKey(rec interfaces.PreKeyRecord) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO pre_keys (id, public, private) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET public = $2, private = $3`,
		rec.ID, rec.Public, rec.Private)
	return err
}

func (s *SQLKeyStore) GetPreKey(id uint32) (interfaces.PreKeyRecord, bool, error) {
	var rec interfaces.PreKeyRecord
	rec.ID = id
	err := s.pool.QueryRow(context.Background(),
		`SELECT public, private FROM pre_keys WHERE id = $1`, id,
	).Scan(&rec.Public, &rec.Private)
	if err != nil {
		return interfaces.PreKeyRecord{}, false, nil
	}
	return rec, true, nil
}

func (s *SQLKeyStore) DeletePreKey(id uint32) error {
	_, err := s.pool.Exec(context.Background(), `DELETE FROM pre_keys WHERE id = $1`, id)
	return err
}

func (s *SQLKeyStore) PreKeyIDs() ([]uint32, error) {
	rows, err := s.pool.Query(context.Background(), `SELECT id FROM pre_keys ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint32
	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLKeyStore) StoreSignedPreKey(rec interfaces.SignedPreKeyRecord) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO signed_pre_keys (id, public, private, signature, ts) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET public = $2, private = $3, signature = $4, ts = $5`,
		rec.ID, rec.Public, rec.Private, rec.Signature, rec.Timestamp)
	return err
}

func (s *SQLKeyStore) GetSignedPreKey(id uint32) (interfaces.SignedPreKeyRecord, bool, error) {
	var rec interfaces.SignedPreKeyRecord
	rec.ID = id
	err := s.pool.QueryRow(context.Background(),
		`SELECT public, private, signature, ts FROM signed_pre_keys WHERE id = $1`, id,
	).Scan(&rec.Public, &rec.Private, &rec.Signature, &rec.Timestamp)
	if err != nil {
		return interfaces.SignedPreKeyRecord{}, false, nil
	}
	return rec, true, nil
}

func (s *SQLKeyStore) StoreSession(jid string, deviceID uint32, session []byte) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO sessions (jid, device_id, session) VALUES ($1, $2, $3)
		 ON CONFLICT (jid, device_id) DO UPDATE SET session = $3`,
		jid, deviceID, session)
	return err
}

func (s *SQLKeyStore) LoadSession(jid string, deviceID uint32) ([]byte, bool, error) {
	var session []byte
	err := s.pool.QueryRow(context.Background(),
		`SELECT session FROM sessions WHERE jid = $1 AND device_id = $2`, jid, deviceID,
	).Scan(&session)
	if err != nil {
		return nil, false, nil
	}
	return session, true, nil
}

func (s *SQLKeyStore) DeleteSession(jid string, deviceID uint32) error {
	_, err := s.pool.Exec(context.Background(),
		`DELETE FROM sessions WHERE jid = $1 AND device_id = $2`, jid, deviceID)
	return err
}
