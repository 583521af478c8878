// Package badger stores resources in an embedded BadgerDB.
package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/geoctl/internal/store"
)

const (
	// BackendID is the canonical identifier for BadgerDB persistence.
	BackendID = "store.badger"
)

var (
	resourcePrefix = []byte("res/")
	sequenceKey    = []byte("meta/seq")
)

// Backend is a BadgerDB-backed resource table.
type Backend struct {
	db *badgerdb.DB
}

// zerologAdapter routes BadgerDB's internal logging through zerolog.
type zerologAdapter struct {
	logger zerolog.Logger
}

func (l zerologAdapter) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

func (l zerologAdapter) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l zerologAdapter) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

func (l zerologAdapter) Debugf(format string, args ...interface{}) {
	l.logger.Trace().Msgf(format, args...)
}

// Open opens (or creates) a database according to cfg.
func Open(cfg store.BackendConfig) (*Backend, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("store.badger: path is required for persistent database")
	}

	var opts badgerdb.Options
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("store.badger: create directory %s: %w", cfg.Path, err)
		}
		opts = badgerdb.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(zerologAdapter{logger: log.With().Str("backend", BackendID).Logger()})

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store.badger: open: %w", err)
	}
	return &Backend{db: db}, nil
}

// Factory registers this backend kind.
func Factory() store.Factory {
	return store.Factory{
		Metadata: Metadata(),
		Open: func(cfg store.BackendConfig) (store.Backend, error) {
			return Open(cfg)
		},
	}
}

// Metadata returns stable backend identity details.
func Metadata() store.BackendMetadata {
	return store.BackendMetadata{
		ID:          BackendID,
		Name:        "BadgerDB",
		Description: "Embedded key-value storage with on-disk durability",
	}
}

func (b *Backend) Metadata() store.BackendMetadata {
	return Metadata()
}

func (b *Backend) NextID(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var next uint64
	err := b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(sequenceKey)
		switch {
		case errors.Is(err, badgerdb.ErrKeyNotFound):
			next = 1
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				if len(val) != 8 {
					return fmt.Errorf("store.badger: corrupt sequence value")
				}
				next = binary.BigEndian.Uint64(val) + 1
				return nil
			}); err != nil {
				return err
			}
		}
		return txn.Set(sequenceKey, encodeID(int64(next)))
	})
	if err != nil {
		return 0, err
	}
	return int64(next), nil
}

func (b *Backend) Put(ctx context.Context, res store.Resource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if res.ID <= 0 {
		return fmt.Errorf("store.badger: invalid id %d", res.ID)
	}
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set(resourceKey(res.ID), data); err != nil {
			return err
		}
		item, err := txn.Get(sequenceKey)
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return txn.Set(sequenceKey, encodeID(res.ID))
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 8 && int64(binary.BigEndian.Uint64(val)) >= res.ID {
				return nil
			}
			return txn.Set(sequenceKey, encodeID(res.ID))
		})
	})
}

func (b *Backend) Get(ctx context.Context, id int64) (store.Resource, error) {
	if err := ctx.Err(); err != nil {
		return store.Resource{}, err
	}
	var res store.Resource
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(resourceKey(id))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("%w: id=%d", store.ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &res)
		})
	})
	return res, err
}

func (b *Backend) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badgerdb.Txn) error {
		key := resourceKey(id)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				return fmt.Errorf("%w: id=%d", store.ErrNotFound, id)
			}
			return err
		}
		return txn.Delete(key)
	})
}

func (b *Backend) List(ctx context.Context) ([]store.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]store.Resource, 0)
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = resourcePrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var res store.Resource
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &res)
			}); err != nil {
				return err
			}
			out = append(out, res)
		}
		return nil
	})
	return out, err
}

func (b *Backend) Close() error {
	return b.db.Close()
}

// resourceKey uses big-endian ids so prefix iteration yields id order.
func resourceKey(id int64) []byte {
	return append(append([]byte(nil), resourcePrefix...), encodeID(id)...)
}

func encodeID(id int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}
