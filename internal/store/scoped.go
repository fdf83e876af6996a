package store

import (
	"context"
)

// scopedStore prefixes every key with a namespace. Closing it does not close
// the parent.
type scopedStore struct {
	parent    Store
	namespace string
}

// Scoped returns a view of parent whose keys live under namespace. The
// service gives each browser its own namespace, keyed by the visitor cookie.
func Scoped(parent Store, namespace string) Store {
	return &scopedStore{parent: parent, namespace: namespace + ":"}
}

func (s *scopedStore) Get(ctx context.Context, key string) (string, error) {
	return s.parent.Get(ctx, s.namespace+key)
}

func (s *scopedStore) Set(ctx context.Context, key, value string) error {
	return s.parent.Set(ctx, s.namespace+key, value)
}

func (s *scopedStore) Delete(ctx context.Context, key string) error {
	return s.parent.Delete(ctx, s.namespace+key)
}

func (s *scopedStore) Close() error {
	return nil
}
