package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	badger "github.com/dgraph-io/badger/v4"
)

// Badger is a Store backed by BadgerDB.
type Badger struct {
	db *badger.DB
}

// BadgerOptions configures OpenBadger.
type BadgerOptions struct {
	// Dir holds the database files. Required unless InMemory is set.
	Dir string

	// InMemory keeps everything in RAM. Used by tests that want the real engine.
	InMemory bool
}

// OpenBadger opens (or creates) a Badger database.
func OpenBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("kv: badger dir is required")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).
		WithInMemory(opts.InMemory).
		WithLogger(slogLogger{}).
		WithNumVersionsToKeep(1)
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("kv: open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Get(_ context.Context, key string) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv: get %q: %w", key, err)
	}
	return val, nil
}

func (b *Badger) Set(_ context.Context, key string, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("kv: set %q: %w", key, err)
	}
	return nil
}

func (b *Badger) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("kv: delete %q: %w", key, err)
	}
	return nil
}

func (b *Badger) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.PrefetchValues = false
		iterOpts.Prefix = []byte(prefix)
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("kv: list %q: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// slogLogger routes badger's internal logging through slog. Info and debug
// chatter is demoted so the device log stays readable.
type slogLogger struct{}

func (slogLogger) Errorf(format string, args ...any) {
	slog.Error("[KV] " + fmt.Sprintf(format, args...))
}

func (slogLogger) Warningf(format string, args ...any) {
	slog.Warn("[KV] " + fmt.Sprintf(format, args...))
}

func (slogLogger) Infof(format string, args ...any) {
	slog.Debug("[KV] " + fmt.Sprintf(format, args...))
}

func (slogLogger) Debugf(string, ...any) {}
