// Package opendb is the database facade: it owns the backend, caches, and
// managers for the lifetime of an open store, and is the only public entry
// point. It composes kv, records, graph, vector, and txn as independent
// subsystems over one shared *bolt.DB, one per co-resident data model.
package opendb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/opendb-io/opendb/graph"
	"github.com/opendb-io/opendb/internal/obslog"
	"github.com/opendb-io/opendb/kv"
	"github.com/opendb-io/opendb/opendberr"
	"github.com/opendb-io/opendb/records"
	"github.com/opendb-io/opendb/storage"
	"github.com/opendb-io/opendb/txn"
	"github.com/opendb-io/opendb/vector"
	"golang.org/x/sys/unix"
)

const (
	identityFileName = "IDENTITY"
	infoFileName     = "INFO.md"
	configFileName   = "config.json"
	lockFileName     = "LOCK"
	formatVersion    = 1
)

var facadeLog = obslog.WithComponent("opendb")

// Options configures OpenWithOptions. A zero VectorDimension, VectorPreset
// or HNSWParams means "use the default" (spec §4.9). For the two cache sizes
// zero disables caching and a negative value selects the default, so
// Options{} runs with both caches disabled; Open uses the default sizes.
type Options struct {
	VectorDimension int                // default 384
	KVCacheSize     int                // default 1000; 0 disables KV caching, negative falls back to the default
	RecordCacheSize int                // default 500; 0 disables record caching, negative falls back to the default
	VectorPreset    vector.Preset      // default vector.Balanced
	HNSWParams      *vector.HNSWParams // overrides VectorPreset's derived params if set
}

func (o Options) withDefaults() Options {
	if o.VectorDimension <= 0 {
		o.VectorDimension = 384
	}
	if o.KVCacheSize < 0 {
		o.KVCacheSize = 1000
	}
	if o.RecordCacheSize < 0 {
		o.RecordCacheSize = 500
	}
	if o.VectorPreset == "" {
		o.VectorPreset = vector.Balanced
	}
	return o
}

func (o Options) hnswParams() vector.HNSWParams {
	if o.HNSWParams != nil {
		return *o.HNSWParams
	}
	return vector.ParamsForPreset(o.VectorPreset)
}

// persistedConfig is the machine-readable config file written at first open
// and validated on every reopen (spec §6).
type persistedConfig struct {
	VectorDimension int       `json:"vector_dimension"`
	CreatedAt       time.Time `json:"created_at"`
	Version         int       `json:"version"`
}

// Database is an opened OpenDB store. Safe for concurrent use by multiple
// goroutines (spec §5); never safe for concurrent use by multiple processes
// against the same directory (enforced by the lock file).
type Database struct {
	path     string
	backend  storage.Backend
	lockFile *os.File

	KV      *kv.Store
	Records *records.Manager
	Graph   *graph.Manager
	Vector  *vector.Manager
	Txn     *txn.Manager
}

// Open opens (creating if absent) path with default Options.
func Open(path string) (*Database, error) {
	return OpenWithOptions(path, Options{KVCacheSize: -1, RecordCacheSize: -1})
}

// OpenWithOptions opens (creating if absent) the data directory at path:
// creates the directory, acquires the exclusive lock, writes or validates
// the identity/info/config files, and instantiates the backend and every
// manager (spec §4.9).
func OpenWithOptions(path string, opts Options) (*Database, error) {
	opts = opts.withDefaults()

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, opendberr.Wrap(opendberr.Storage, "opendb.Open", err)
	}

	lockFile, err := acquireLock(path)
	if err != nil {
		return nil, err
	}

	cfg, err := loadOrWriteConfig(path, opts)
	if err != nil {
		lockFile.Close()
		return nil, err
	}
	if cfg.VectorDimension != opts.VectorDimension {
		lockFile.Close()
		return nil, opendberr.Newf(opendberr.InvalidInput, "opendb.Open",
			"store was created with vector_dimension=%d, cannot reopen with %d", cfg.VectorDimension, opts.VectorDimension)
	}

	if err := writeIdentityAndInfo(path); err != nil {
		lockFile.Close()
		return nil, err
	}

	facadeLog.Info().Str("path", path).Msg("opening backend")
	backend, err := storage.OpenBoltBackend(path)
	if err != nil {
		lockFile.Close()
		return nil, err
	}

	vecMgr := vector.New(backend, opts.VectorDimension, opts.hnswParams())
	db := &Database{
		path:     path,
		backend:  backend,
		lockFile: lockFile,
		KV:       kv.New(backend, opts.KVCacheSize),
		Records:  records.New(backend, vecMgr, opts.VectorDimension, opts.RecordCacheSize),
		Graph:    graph.New(backend),
		Vector:   vecMgr,
		Txn:      txn.New(backend),
	}
	return db, nil
}

// acquireLock creates (or opens) the lock file and takes an exclusive,
// non-blocking flock on it. A second process opening the same directory
// gets a storage error citing the lock, per spec §4.9/§6.
func acquireLock(path string) (*os.File, error) {
	lockPath := filepath.Join(path, lockFileName)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, opendberr.Wrap(opendberr.Storage, "opendb.Open", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, opendberr.Newf(opendberr.Storage, "opendb.Open",
			"directory %s is locked by another process: %v", path, err)
	}
	owner := uuid.NewString()
	if err := f.Truncate(0); err == nil {
		f.WriteAt([]byte(owner), 0)
	}
	return f, nil
}

func loadOrWriteConfig(path string, opts Options) (persistedConfig, error) {
	configPath := filepath.Join(path, configFileName)
	raw, err := os.ReadFile(configPath)
	if err == nil {
		var cfg persistedConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return persistedConfig{}, opendberr.Wrap(opendberr.Storage, "opendb.Open", err)
		}
		return cfg, nil
	}
	if !os.IsNotExist(err) {
		return persistedConfig{}, opendberr.Wrap(opendberr.Storage, "opendb.Open", err)
	}

	cfg := persistedConfig{VectorDimension: opts.VectorDimension, CreatedAt: time.Now(), Version: formatVersion}
	encoded, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return persistedConfig{}, opendberr.Wrap(opendberr.Codec, "opendb.Open", err)
	}
	if err := os.WriteFile(configPath, encoded, 0644); err != nil {
		return persistedConfig{}, opendberr.Wrap(opendberr.Storage, "opendb.Open", err)
	}
	return cfg, nil
}

func writeIdentityAndInfo(path string) error {
	identityPath := filepath.Join(path, identityFileName)
	if _, err := os.Stat(identityPath); os.IsNotExist(err) {
		if err := os.WriteFile(identityPath, []byte("opendb-store\n"), 0644); err != nil {
			return opendberr.Wrap(opendberr.Storage, "opendb.Open", err)
		}
		info := fmt.Sprintf("This directory is an OpenDB data store.\nDo not modify its contents directly; use the OpenDB API.\nFormat version: %d\n", formatVersion)
		if err := os.WriteFile(filepath.Join(path, infoFileName), []byte(info), 0644); err != nil {
			return opendberr.Wrap(opendberr.Storage, "opendb.Open", err)
		}
		return nil
	}
	raw, err := os.ReadFile(identityPath)
	if err != nil {
		return opendberr.Wrap(opendberr.Storage, "opendb.Open", err)
	}
	if string(raw) != "opendb-store\n" {
		return opendberr.New(opendberr.Storage, "opendb.Open", "directory exists but is not an OpenDB store")
	}
	return nil
}

// Flush forces durable persistence of everything written so far.
func (db *Database) Flush() error {
	return db.backend.Flush()
}

// Backup writes a consistent hot copy of the backend file to destPath. It
// does not require releasing the process lock (spec §6's documented
// "copy while unlocked" path remains the correct approach for copying the
// entire directory, including the config/identity files).
func (db *Database) Backup(destPath string) error {
	boltBackend, ok := db.backend.(*storage.BoltBackend)
	if !ok {
		return opendberr.New(opendberr.Storage, "opendb.Backup", "backup is only supported against the BoltDB backend")
	}
	return boltBackend.Backup(destPath)
}

// Close releases the process lock and closes the backend. The Database must
// not be used afterward.
func (db *Database) Close() error {
	facadeLog.Info().Str("path", db.path).Msg("closing")
	closeErr := db.backend.Close()
	unix.Flock(int(db.lockFile.Fd()), unix.LOCK_UN)
	lockErr := db.lockFile.Close()
	if closeErr != nil {
		return closeErr
	}
	if lockErr != nil {
		return opendberr.Wrap(opendberr.Storage, "opendb.Close", lockErr)
	}
	return nil
}
