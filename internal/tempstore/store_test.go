package tempstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStore_SetGetHas(t *testing.T) {
	s := New(0, 0)

	s.Set("token", "abc")
	v, ok := s.Get("token")
	require.True(t, ok)
	require.Equal(t, "abc", v)
	require.True(t, s.Has("token"))
	require.False(t, s.Has("other"))

	_, ok = s.Get("other")
	require.False(t, ok)
}

func TestStore_NilValueIsPresent(t *testing.T) {
	s := New(0, 0)
	s.Set("nothing", nil)

	require.True(t, s.Has("nothing"))
	v, ok := s.Get("nothing")
	require.True(t, ok)
	require.Nil(t, v)
}

type example struct {
	ID   int
	Name string
}

func TestGetAs(t *testing.T) {
	s := New(0, 0)
	s.Set("ex:1", example{ID: 1, Name: "apple"})

	got, ok := GetAs[example](s, "ex:1")
	require.True(t, ok)
	require.Equal(t, "apple", got.Name)

	_, ok = GetAs[string](s, "ex:1")
	require.False(t, ok, "wrong type is a miss")

	_, ok = GetAs[example](s, "missing")
	require.False(t, ok)
}

func TestStore_RemoveAndClear(t *testing.T) {
	s := New(0, 0)
	s.Set("a", 1)
	s.Set("b", 2)

	s.Remove("a")
	require.False(t, s.Has("a"))
	require.Equal(t, 1, s.Len())

	s.Clear()
	require.True(t, s.IsEmpty())
}

func TestStore_Enumeration(t *testing.T) {
	s := New(0, 0)
	s.Set("b", 2)
	s.Set("a", 1)
	s.Set("c", 3)

	require.Equal(t, []string{"a", "b", "c"}, s.Keys())
	require.Equal(t, []any{1, 2, 3}, s.Values())
	require.Equal(t, map[string]any{"a": 1, "b": 2, "c": 3}, s.Entries())
	require.Equal(t, 3, s.Len())
	require.False(t, s.IsEmpty())
}

func TestStore_EntriesIsACopy(t *testing.T) {
	s := New(0, 0)
	s.Set("a", 1)

	entries := s.Entries()
	entries["b"] = 2
	require.False(t, s.Has("b"))
}

func TestStore_TTLExpires(t *testing.T) {
	s := New(0, 0)
	s.SetWithTTL("short", "x", 10*time.Millisecond)
	s.Set("forever", "y")

	require.Eventually(t, func() bool { return !s.Has("short") }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"forever"}, s.Keys())
}

func TestReadThrough_CachesSuccess(t *testing.T) {
	s := New(0, 0)
	calls := 0
	rt := NewReadThrough(s, func(_ context.Context, in string) (int, error) {
		calls++
		return len(in), nil
	}, false)

	v, err := rt.Get(context.Background(), "len:hello", "hello", NoExpiration)
	require.NoError(t, err)
	require.Equal(t, 5, v)

	v, err = rt.Get(context.Background(), "len:hello", "ignored", NoExpiration)
	require.NoError(t, err)
	require.Equal(t, 5, v)
	require.Equal(t, 1, calls)
}

func TestReadThrough_DoesNotCacheErrors(t *testing.T) {
	s := New(0, 0)
	boom := errors.New("boom")
	rt := NewReadThrough(s, func(context.Context, string) (int, error) { return 0, boom }, false)

	_, err := rt.Get(context.Background(), "k", "in", NoExpiration)
	require.ErrorIs(t, err, boom)
	require.False(t, s.Has("k"))
}

func TestReadThrough_Skip(t *testing.T) {
	s := New(0, 0)
	calls := 0
	rt := NewReadThrough(s, func(context.Context, string) (int, error) {
		calls++
		return calls, nil
	}, true)

	_, _ = rt.Get(context.Background(), "k", "", NoExpiration)
	_, _ = rt.Get(context.Background(), "k", "", NoExpiration)
	require.Equal(t, 2, calls)
	require.False(t, s.Has("k"))
}
