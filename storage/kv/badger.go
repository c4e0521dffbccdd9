package kv

import (
	"os"

	"github.com/dgraph-io/badger"
	"github.com/klaytn/graelnode/internal/log"
)

// badgerStore backs Store with github.com/dgraph-io/badger, following the
// directory-creation and contextual-logger setup of klaytn's
// storage/database/badger_database.go.
type badgerStore struct {
	db     *badger.DB
	logger log.Logger
}

// OpenBadger opens (or creates) a badger-backed Store rooted at dir.
func OpenBadger(dir string) (Store, error) {
	l := log.NewModuleLogger(log.ModuleIndex).New("dir", dir)

	if fi, err := os.Stat(dir); err == nil {
		if !fi.IsDir() {
			return nil, &pathError{dir: dir, reason: "not a directory"}
		}
	} else if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	} else {
		return nil, err
	}

	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	l.Info("opened index store")
	return &badgerStore{db: db, logger: l}, nil
}

type pathError struct {
	dir    string
	reason string
}

func (e *pathError) Error() string { return "kv: " + e.dir + ": " + e.reason }

func (s *badgerStore) Get(key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *badgerStore) Put(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (s *badgerStore) Delete(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (s *badgerStore) Close() error {
	s.logger.Info("closing index store")
	return s.db.Close()
}

func (s *badgerStore) NewBatch() Batch {
	return &badgerBatch{db: s.db, wb: s.db.NewWriteBatch()}
}

type badgerBatch struct {
	db *badger.DB
	wb *badger.WriteBatch
}

func (b *badgerBatch) Put(key, value []byte) {
	_ = b.wb.Set(key, value, 0)
}

func (b *badgerBatch) Delete(key []byte) {
	_ = b.wb.Delete(key)
}

func (b *badgerBatch) Commit() error {
	return b.wb.Flush()
}
