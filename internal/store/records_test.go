package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/companin/widget/pkg/logger"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestRecords(s Store) *Records {
	r := NewRecords(s, logger.NewNop(), 0)
	r.Now = func() time.Time { return testNow }
	return r
}

func TestKeys(t *testing.T) {
	require.Equal(t, "companin-session-c1-a1", SessionKey("c1", "a1"))
	require.Equal(t, "companin-visitor-c1", VisitorKey("c1"))
}

func TestLoadSession_Valid(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	r := newTestRecords(mem)

	r.SaveSession(ctx, "c1", "a1", "S1", testNow.Add(10*time.Minute))

	rec, ok := r.LoadSession(ctx, "c1", "a1")
	require.True(t, ok)
	require.Equal(t, "S1", rec.SessionID)
	require.Equal(t, testNow, rec.CreatedAt)
}

func TestLoadSession_WithinSkewIsPurged(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	r := newTestRecords(mem)

	r.SaveSession(ctx, "c1", "a1", "S1", testNow.Add(4*time.Minute))

	_, ok := r.LoadSession(ctx, "c1", "a1")
	require.False(t, ok)
	_, err := mem.Get(ctx, SessionKey("c1", "a1"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoadSession_ExactlySkewIsPurged(t *testing.T) {
	ctx := context.Background()
	r := newTestRecords(NewMemoryStore())

	r.SaveSession(ctx, "c1", "a1", "S1", testNow.Add(5*time.Minute))
	_, ok := r.LoadSession(ctx, "c1", "a1")
	require.False(t, ok)
}

func TestLoadSession_PastIsPurged(t *testing.T) {
	ctx := context.Background()
	r := newTestRecords(NewMemoryStore())

	r.SaveSession(ctx, "c1", "a1", "S1", testNow.Add(-time.Hour))
	_, ok := r.LoadSession(ctx, "c1", "a1")
	require.False(t, ok)
}

func TestLoadSession_CorruptIsPurged(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	r := newTestRecords(mem)

	require.NoError(t, mem.Set(ctx, SessionKey("c1", "a1"), "{not json"))
	_, ok := r.LoadSession(ctx, "c1", "a1")
	require.False(t, ok)
	require.Equal(t, 0, mem.Len())
}

func TestLoadSession_MissingExpiryIsInvalid(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	r := newTestRecords(mem)

	require.NoError(t, mem.Set(ctx, SessionKey("c1", "a1"), `{"sessionId":"S1"}`))
	_, ok := r.LoadSession(ctx, "c1", "a1")
	require.False(t, ok)
}

func TestVisitorID_CreatedOnce(t *testing.T) {
	ctx := context.Background()
	r := newTestRecords(NewMemoryStore())

	first := r.VisitorID(ctx, "c1")
	require.True(t, strings.HasPrefix(first, "widget-"))
	require.Equal(t, first, r.VisitorID(ctx, "c1"))
	require.NotEqual(t, first, r.VisitorID(ctx, "c2"))
}

type failingStore struct{ *MemoryStore }

func (failingStore) Set(context.Context, string, string) error { return errors.New("quota exceeded") }

func TestWritesAreBestEffort(t *testing.T) {
	ctx := context.Background()
	r := newTestRecords(failingStore{MemoryStore: NewMemoryStore()})

	r.SaveSession(ctx, "c1", "a1", "S1", testNow.Add(time.Hour))
	_, ok := r.LoadSession(ctx, "c1", "a1")
	require.False(t, ok)

	require.NotEmpty(t, r.VisitorID(ctx, "c1"))
}

func TestScoped_IsolatesNamespaces(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	a := Scoped(mem, "browser-a")
	b := Scoped(mem, "browser-b")

	require.NoError(t, a.Set(ctx, "k", "1"))
	_, err := b.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)

	v, err := a.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "1", v)

	require.NoError(t, a.Close())
	require.Equal(t, 1, mem.Len())
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(StoreTypeMemory, WithTTL(time.Hour))
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, s)
	require.Equal(t, time.Hour, s.(*MemoryStore).ttl)

	_, err = NewStore(StoreTypeRedis)
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewStore("bolt")
	require.ErrorIs(t, err, ErrInvalidStoreType)
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := testNow
	mem := NewMemoryStoreWithTTL(time.Hour)
	mem.Now = func() time.Time { return now }

	require.NoError(t, mem.Set(ctx, "a", "1"))
	now = now.Add(30 * time.Minute)
	require.NoError(t, mem.Set(ctx, "b", "2"))

	now = now.Add(45 * time.Minute)
	_, err := mem.Get(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)
	v, err := mem.Get(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, "2", v)
	require.Equal(t, 1, mem.Len(), "expired key is dropped on read")

	require.NoError(t, mem.Set(ctx, "c", "3"))
	now = now.Add(20 * time.Minute)
	require.Equal(t, 1, mem.Prune())
	require.Equal(t, 1, mem.Len())
}

func TestMemoryStore_NoTTLKeepsEntries(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	require.NoError(t, mem.Set(ctx, "a", "1"))
	mem.Now = func() time.Time { return testNow.Add(10 * 365 * 24 * time.Hour) }

	v, err := mem.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "1", v)
	require.Zero(t, mem.Prune())
}
