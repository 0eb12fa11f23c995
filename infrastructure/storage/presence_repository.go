package storage

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	stderrors "errors"
)

type IPresenceRepository interface {
	SetLastSeen(userID string, at time.Time) error
	GetLastSeen(userID string) (time.Time, bool, error)
}

// PresenceRepository records "seen:{user}" -> unix nanos in BadgerDB.
type PresenceRepository struct {
	db *badger.DB
}

func NewPresenceRepository(db *badger.DB) PresenceRepository {
	return PresenceRepository{db: db}
}

func seenKey(userID string) []byte {
	return []byte(fmt.Sprintf("seen:%s", userID))
}

func (p PresenceRepository) SetLastSeen(userID string, at time.Time) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(at.UnixNano()))
	return p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(seenKey(userID), buf[:])
	})
}

func (p PresenceRepository) GetLastSeen(userID string) (time.Time, bool, error) {
	var at time.Time
	found := false
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(seenKey(userID))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			if len(value) != 8 {
				return nil
			}
			at = time.Unix(0, int64(binary.BigEndian.Uint64(value)))
			found = true
			return nil
		})
	})
	return at, found, err
}
