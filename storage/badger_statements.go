package storage

import (
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/go-oidfed/registrar/storage/model"
)

const badgerStatementPrefix = "statements:"

// BadgerStatementStorage implements model.StatementStore in an embedded
// badger database. Only the latest statement per subject is kept.
type BadgerStatementStorage struct {
	db   *badger.DB
	stop chan struct{}
}

// NewBadgerStatementStorage opens (or creates) a badger statement cache at
// the passed directory
func NewBadgerStatementStorage(dir string) (*BadgerStatementStorage, error) {
	if dir == "" {
		return nil, errors.New("badger statement cache: no directory given")
	}
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	store := &BadgerStatementStorage{
		db:   db,
		stop: make(chan struct{}),
	}
	go store.gc()
	return store, nil
}

func (*BadgerStatementStorage) key(subject string) []byte {
	return []byte(badgerStatementPrefix + subject)
}

func (store *BadgerStatementStorage) gc() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-store.stop:
			return
		case <-ticker.C:
			for store.db.RunValueLogGC(0.7) == nil {
			}
		}
	}
}

// Close stops the value log gc and closes the database
func (store *BadgerStatementStorage) Close() error {
	close(store.stop)
	return store.db.Close()
}

// Put stores statement as the latest statement of its subject; the entry
// expires together with the statement
func (store *BadgerStatementStorage) Put(statement *model.EntityStatement) error {
	data, err := msgpack.Marshal(statement)
	if err != nil {
		return errors.WithStack(err)
	}
	ttl := time.Until(time.Unix(statement.ExpiresAt, 0))
	if ttl <= 0 {
		return nil
	}
	return errors.WithStack(
		store.db.Update(
			func(txn *badger.Txn) error {
				return txn.SetEntry(badger.NewEntry(store.key(statement.Subject), data).WithTTL(ttl))
			},
		),
	)
}

// Latest returns the cached statement for subject if it is valid at now
func (store *BadgerStatementStorage) Latest(subject string, now int64) (*model.EntityStatement, error) {
	var stmt model.EntityStatement
	var found bool
	err := store.db.View(
		func(txn *badger.Txn) error {
			item, err := txn.Get(store.key(subject))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			found = true
			return item.Value(
				func(val []byte) error {
					return msgpack.Unmarshal(val, &stmt)
				},
			)
		},
	)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !found || !stmt.ValidAt(now) {
		return nil, nil
	}
	return &stmt, nil
}

// Invalidate removes the cached statement for subject
func (store *BadgerStatementStorage) Invalidate(subject string) error {
	return errors.WithStack(
		store.db.Update(
			func(txn *badger.Txn) error {
				return txn.Delete(store.key(subject))
			},
		),
	)
}

// Purge removes statements that are expired at now. Entries also carry a
// badger TTL, so this mostly catches clock skew between writer and reader.
func (store *BadgerStatementStorage) Purge(now int64) (int64, error) {
	var expired [][]byte
	err := store.db.View(
		func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			prefix := []byte(badgerStatementPrefix)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				err := item.Value(
					func(v []byte) error {
						var stmt model.EntityStatement
						if err := msgpack.Unmarshal(v, &stmt); err != nil {
							log.WithError(err).WithField("key", string(item.Key())).
								Warn("dropping undecodable cached statement")
							expired = append(expired, item.KeyCopy(nil))
							return nil
						}
						if !stmt.ValidAt(now) {
							expired = append(expired, item.KeyCopy(nil))
						}
						return nil
					},
				)
				if err != nil {
					return err
				}
			}
			return nil
		},
	)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	for _, k := range expired {
		if err = store.db.Update(
			func(txn *badger.Txn) error {
				return txn.Delete(k)
			},
		); err != nil {
			return 0, errors.WithStack(err)
		}
	}
	return int64(len(expired)), nil
}
