package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Prefs is a namespaced view over a Store with typed helpers for the
// string and byte settings the clock persists.
type Prefs struct {
	store     Store
	namespace string
}

// NewPrefs returns a view of store restricted to namespace.
func NewPrefs(store Store, namespace string) *Prefs {
	return &Prefs{store: store, namespace: namespace}
}

// Namespace returns the namespace this view is bound to.
func (p *Prefs) Namespace() string { return p.namespace }

// GetString returns the stored string or def if the key is missing or
// cannot be read.
func (p *Prefs) GetString(key, def string) string {
	v, err := p.store.Get(context.Background(), JoinKey(p.namespace, key))
	if err != nil {
		return def
	}
	return string(v)
}

// PutString stores a string value.
func (p *Prefs) PutString(key, value string) error {
	if err := p.store.Set(context.Background(), JoinKey(p.namespace, key), []byte(value)); err != nil {
		return fmt.Errorf("prefs %s: %w", p.namespace, err)
	}
	return nil
}

// GetByte returns a single-byte value or def.
func (p *Prefs) GetByte(key string, def byte) byte {
	v, err := p.store.Get(context.Background(), JoinKey(p.namespace, key))
	if err != nil || len(v) != 1 {
		return def
	}
	return v[0]
}

// PutByte stores a single-byte value.
func (p *Prefs) PutByte(key string, value byte) error {
	if err := p.store.Set(context.Background(), JoinKey(p.namespace, key), []byte{value}); err != nil {
		return fmt.Errorf("prefs %s: %w", p.namespace, err)
	}
	return nil
}

// Has reports whether key exists.
func (p *Prefs) Has(key string) bool {
	_, err := p.store.Get(context.Background(), JoinKey(p.namespace, key))
	return err == nil
}

// Lookup returns the raw value and whether it was found. Read errors other
// than ErrNotFound are returned.
func (p *Prefs) Lookup(key string) (string, bool, error) {
	v, err := p.store.Get(context.Background(), JoinKey(p.namespace, key))
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(v), true, nil
}

// Remove deletes key.
func (p *Prefs) Remove(key string) error {
	if err := p.store.Delete(context.Background(), JoinKey(p.namespace, key)); err != nil {
		return fmt.Errorf("prefs %s: %w", p.namespace, err)
	}
	return nil
}

// Keys returns the keys in this namespace, without the namespace prefix.
func (p *Prefs) Keys() ([]string, error) {
	stored, err := p.store.Keys(context.Background(), p.namespace+string(Separator))
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(stored))
	for _, s := range stored {
		keys = append(keys, strings.TrimPrefix(s, p.namespace+string(Separator)))
	}
	return keys, nil
}
