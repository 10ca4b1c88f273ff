package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketSession = []byte("session")
	keyToken      = []byte("token")
)

// Session is the persisted login.
type Session struct {
	Token   string    `json:"token"`
	TeamID  string    `json:"team_id"`
	SavedAt time.Time `json:"saved_at"`
}

// SessionStore persists the session in a bbolt file. The token is the only
// state kept across runs; the entity cache is rebuilt every time.
type SessionStore struct {
	db *bolt.DB
}

// OpenSessionStore opens or creates the session database at dbPath.
func OpenSessionStore(dbPath string) (*SessionStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create session directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSession)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session bucket: %w", err)
	}

	return &SessionStore{db: db}, nil
}

// Close releases the database.
func (s *SessionStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save replaces the stored session.
func (s *SessionStore) Save(sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSession).Put(keyToken, data)
	})
}

// Load returns the stored session, or ErrNoSession.
func (s *SessionStore) Load() (*Session, error) {
	var sess *Session
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSession).Get(keyToken)
		if data == nil {
			return ErrNoSession
		}
		sess = &Session{}
		return json.Unmarshal(data, sess)
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Delete removes the stored session. Deleting a missing session is not an
// error.
func (s *SessionStore) Delete() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSession).Delete(keyToken)
	})
}

// Current loads the stored session and checks its token is still valid
// at now.
func (s *SessionStore) Current(now time.Time) (*Session, *Token, error) {
	sess, err := s.Load()
	if err != nil {
		return nil, nil, err
	}
	tok, err := ParseToken(sess.Token)
	if err != nil {
		return nil, nil, err
	}
	if err := tok.Valid(now); err != nil {
		return nil, nil, err
	}
	return sess, tok, nil
}
