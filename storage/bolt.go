package storage

import (
	"bytes"
	"fmt"
	"path/filepath"
	"time"

	"github.com/opendb-io/opendb/internal/obslog"
	"github.com/opendb-io/opendb/internal/obsmetrics"
	"github.com/opendb-io/opendb/opendberr"
	bolt "go.etcd.io/bbolt"
)

func observeOp(op, cf string, start time.Time) {
	obsmetrics.StorageOpDuration.WithLabelValues(op, cf).Observe(time.Since(start).Seconds())
}

// BoltBackend implements Backend using BoltDB, one bucket per partition: a
// single *bolt.DB file, buckets created up front, db.View for reads and
// db.Update for non-transactional writes. On top of that it layers an
// optimistic Transaction (txBuffer) over bbolt's snapshot-isolated,
// pessimistic-single-writer transactions rather than using db.Update
// directly for every mutation.
type BoltBackend struct {
	db *bolt.DB
}

var storageLog = obslog.WithComponent("storage")

// OpenBoltBackend opens (creating if absent) a BoltDB file at
// <dataDir>/opendb.db and ensures every partition bucket exists.
func OpenBoltBackend(dataDir string) (*BoltBackend, error) {
	dbPath := filepath.Join(dataDir, "opendb.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, opendberr.Wrap(opendberr.Storage, "storage.OpenBoltBackend", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, cf := range Partitions {
			if _, err := tx.CreateBucketIfNotExists([]byte(cf)); err != nil {
				return fmt.Errorf("create bucket %s: %w", cf, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, opendberr.Wrap(opendberr.Storage, "storage.OpenBoltBackend", err)
	}

	storageLog.Info().Str("path", dbPath).Msg("backend opened")
	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Get(cf string, key []byte) ([]byte, error) {
	defer observeOp("get", cf, time.Now())
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(cf)).Get(key)
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, errStorage("storage.Get", err)
	}
	return out, nil
}

func (b *BoltBackend) Exists(cf string, key []byte) (bool, error) {
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket([]byte(cf)).Get(key) != nil
		return nil
	})
	if err != nil {
		return false, errStorage("storage.Exists", err)
	}
	return found, nil
}

func (b *BoltBackend) ScanPrefix(cf string, prefix []byte) ([]KV, error) {
	defer observeOp("scan_prefix", cf, time.Now())
	var out []KV
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(cf)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			out = append(out, KV{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)})
		}
		return nil
	})
	if err != nil {
		return nil, errStorage("storage.ScanPrefix", err)
	}
	return out, nil
}

func (b *BoltBackend) Put(cf string, key, value []byte) error {
	defer observeOp("put", cf, time.Now())
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(cf)).Put(key, value)
	})
	return errStorage("storage.Put", err)
}

func (b *BoltBackend) Delete(cf string, key []byte) error {
	defer observeOp("delete", cf, time.Now())
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(cf)).Delete(key)
	})
	return errStorage("storage.Delete", err)
}

func (b *BoltBackend) Flush() error {
	return errStorage("storage.Flush", b.db.Sync())
}

// Backup writes a consistent point-in-time copy of the database file to
// destPath, using bbolt's read-only transaction snapshot so it never blocks
// concurrent writers for longer than the copy of already-flushed pages.
func (b *BoltBackend) Backup(destPath string) error {
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.CopyFile(destPath, 0600)
	})
	return errStorage("storage.Backup", err)
}

func (b *BoltBackend) Close() error {
	storageLog.Info().Msg("backend closing")
	return errStorage("storage.Close", b.db.Close())
}

// boltSnapshot wraps a held bbolt read-only transaction. bbolt's MVCC means
// this transaction sees a fixed point in time regardless of concurrent
// writers; Close releases it.
type boltSnapshot struct {
	tx *bolt.Tx
}

func (b *BoltBackend) Snapshot() (Snapshot, error) {
	tx, err := b.db.Begin(false)
	if err != nil {
		return nil, errStorage("storage.Snapshot", err)
	}
	return &boltSnapshot{tx: tx}, nil
}

func (s *boltSnapshot) Get(cf string, key []byte) ([]byte, error) {
	v := s.tx.Bucket([]byte(cf)).Get(key)
	if v == nil {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (s *boltSnapshot) Exists(cf string, key []byte) (bool, error) {
	return s.tx.Bucket([]byte(cf)).Get(key) != nil, nil
}

func (s *boltSnapshot) ScanPrefix(cf string, prefix []byte) ([]KV, error) {
	var out []KV
	c := s.tx.Bucket([]byte(cf)).Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		out = append(out, KV{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)})
	}
	return out, nil
}

func (s *boltSnapshot) Close() error {
	return errStorage("storage.Snapshot.Close", s.tx.Rollback())
}

// boltTransaction layers txBuffer's optimistic write buffer over a
// boltSnapshot. Commit re-validates every touched key and, if unchanged,
// applies the buffer inside a single bbolt write transaction.
type boltTransaction struct {
	backend *BoltBackend
	snap    *boltSnapshot
	buf     *txBuffer
}

func (b *BoltBackend) BeginTransaction() (Transaction, error) {
	snap, err := b.Snapshot()
	if err != nil {
		return nil, errTxn("storage.BeginTransaction", err)
	}
	bs := snap.(*boltSnapshot)
	return &boltTransaction{backend: b, snap: bs, buf: newTxBuffer(bs)}, nil
}

func (t *boltTransaction) Get(cf string, key []byte) ([]byte, error) {
	return t.buf.get(cf, key)
}

func (t *boltTransaction) Exists(cf string, key []byte) (bool, error) {
	v, err := t.buf.get(cf, key)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

func (t *boltTransaction) ScanPrefix(cf string, prefix []byte) ([]KV, error) {
	return nil, opendberr.New(opendberr.Transaction, "storage.Transaction.ScanPrefix", "scan_prefix is not part of the transaction contract")
}

func (t *boltTransaction) Put(cf string, key, value []byte) error {
	return t.buf.put(cf, key, value)
}

func (t *boltTransaction) Delete(cf string, key []byte) error {
	return t.buf.delete(cf, key)
}

func (t *boltTransaction) Commit() error {
	if t.buf.done {
		return opendberr.New(opendberr.Transaction, "storage.Transaction.Commit", "transaction already finalized")
	}
	defer t.snap.Close()

	err := t.backend.db.Update(func(tx *bolt.Tx) error {
		for _, base := range t.buf.base {
			cur := tx.Bucket([]byte(base.cf)).Get(base.key)
			curFound := cur != nil
			if curFound != base.found || (curFound && !bytes.Equal(cur, base.value)) {
				return opendberr.New(opendberr.Transaction, "storage.Transaction.Commit", "conflict: key modified since snapshot")
			}
		}
		for ck, w := range t.buf.writes {
			base := t.buf.base[ck]
			bucket := tx.Bucket([]byte(base.cf))
			if w.tombstone {
				if err := bucket.Delete(base.key); err != nil {
					return err
				}
			} else if err := bucket.Put(base.key, w.value); err != nil {
				return err
			}
		}
		return nil
	})
	t.buf.done = true
	if err != nil {
		if opendberr.Is(err, opendberr.Transaction) {
			return err
		}
		return errStorage("storage.Transaction.Commit", err)
	}
	return nil
}

func (t *boltTransaction) Rollback() error {
	if t.buf.done {
		return nil
	}
	t.buf.done = true
	return errStorage("storage.Transaction.Rollback", t.snap.Close())
}
