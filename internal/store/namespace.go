package store

import "context"

// PrefixKV is a KV that can clear a key range.
type PrefixKV interface {
	KV
	ClearPrefix(ctx context.Context, prefix string) error
}

// Namespace is a view of a PrefixKV restricted to keys under prefix.
// Clearing it leaves the rest of the store alone, so the cache and the
// settings can share one database.
type Namespace struct {
	kv     PrefixKV
	prefix string
}

// NewNamespace returns a view of kv under prefix.
func NewNamespace(kv PrefixKV, prefix string) *Namespace {
	return &Namespace{kv: kv, prefix: prefix}
}

// Get returns the value under the namespaced key or ErrNotFound.
func (n *Namespace) Get(ctx context.Context, key string) ([]byte, error) {
	return n.kv.Get(ctx, n.prefix+key)
}

// Set stores value under the namespaced key.
func (n *Namespace) Set(ctx context.Context, key string, value []byte) error {
	return n.kv.Set(ctx, n.prefix+key, value)
}

// Delete removes the namespaced key.
func (n *Namespace) Delete(ctx context.Context, key string) error {
	return n.kv.Delete(ctx, n.prefix+key)
}

// Clear removes every key in the namespace and nothing else.
func (n *Namespace) Clear(ctx context.Context) error {
	return n.kv.ClearPrefix(ctx, n.prefix)
}
