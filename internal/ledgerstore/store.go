// Package ledgerstore is a thin leveldb-backed persistence layer for
// account balances: a small Store type wrapping goleveldb with
// prefixed keys and an open/recover pattern for corrupted files.
package ledgerstore

import (
	"encoding/binary"
	"os"

	"github.com/syndtr/goleveldb/leveldb"
	lderrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/pkg/errors"
)

var accountPrefix = []byte("ACCOUNT:")

// Store wraps a leveldb handle. The zero value is not usable; use Open.
type Store struct {
	db *leveldb.DB
}

// Open opens (or creates) a leveldb database at path, attempting a
// recovery pass if the existing files are corrupted.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if _, corrupted := err.(*lderrors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if pathErr, ok := err.(*os.PathError); ok {
		return nil, errors.Wrapf(pathErr, "ledgerstore: could not open or create db at %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "ledgerstore: open")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying leveldb handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutAccount persists an account's balance and unconfirmed balance
// under its address.
func (s *Store) PutAccount(address string, balance, uBalance uint64) error {
	key := append(append([]byte{}, accountPrefix...), []byte(address)...)

	val := make([]byte, 16)
	binary.BigEndian.PutUint64(val[:8], balance)
	binary.BigEndian.PutUint64(val[8:], uBalance)

	return s.db.Put(key, val, nil)
}

// GetAccount reads back a persisted balance pair. It returns
// leveldb.ErrNotFound (unwrapped) when the address has never been
// written, so callers can use errors.Is against it.
func (s *Store) GetAccount(address string) (balance, uBalance uint64, err error) {
	key := append(append([]byte{}, accountPrefix...), []byte(address)...)

	val, err := s.db.Get(key, nil)
	if err != nil {
		return 0, 0, err
	}
	if len(val) != 16 {
		return 0, 0, errors.New("ledgerstore: corrupt account record")
	}

	return binary.BigEndian.Uint64(val[:8]), binary.BigEndian.Uint64(val[8:]), nil
}
