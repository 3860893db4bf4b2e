package kv_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/haivivi/interviewer/pkg/kv"
)

// backends runs each test against every Store implementation.
var backends = []struct {
	name string
	open func(t *testing.T, opts *kv.Options) kv.Store
}{
	{"memory", func(t *testing.T, opts *kv.Options) kv.Store {
		return kv.NewMemory(opts)
	}},
	{"badger", func(t *testing.T, opts *kv.Options) kv.Store {
		s, err := kv.NewBadger(kv.BadgerOptions{Options: opts, InMemory: true})
		if err != nil {
			t.Fatalf("NewBadger: %v", err)
		}
		return s
	}},
}

func forEachBackend(t *testing.T, opts *kv.Options, fn func(t *testing.T, s kv.Store)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t, opts)
			t.Cleanup(func() { s.Close() })
			fn(t, s)
		})
	}
}

func TestGetSetDelete(t *testing.T) {
	forEachBackend(t, nil, func(t *testing.T, s kv.Store) {
		ctx := context.Background()
		key := kv.Key{"session", "s1"}

		if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
			t.Fatalf("Get missing = %v, want ErrNotFound", err)
		}
		if err := s.Set(ctx, key, []byte("v1")); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, err := s.Get(ctx, key)
		if err != nil || string(got) != "v1" {
			t.Fatalf("Get = %q, %v", got, err)
		}
		if err := s.Delete(ctx, key); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
			t.Fatalf("Get after Delete = %v", err)
		}
		if err := s.Delete(ctx, kv.Key{"no", "such"}); err != nil {
			t.Fatalf("Delete missing: %v", err)
		}
	})
}

func TestUpdate(t *testing.T) {
	forEachBackend(t, nil, func(t *testing.T, s kv.Store) {
		ctx := context.Background()
		key := kv.Key{"counter"}

		err := s.Update(ctx, key, func(old []byte, found bool) ([]byte, error) {
			if found {
				t.Errorf("found = true for a missing key")
			}
			return []byte("a"), nil
		})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		s.Update(ctx, key, func(old []byte, _ bool) ([]byte, error) {
			return append(old, 'b'), nil
		})
		s.Update(ctx, key, func([]byte, bool) ([]byte, error) {
			return []byte("ignored"), kv.ErrSkip
		})
		boom := errors.New("boom")
		if err := s.Update(ctx, key, func([]byte, bool) ([]byte, error) { return nil, boom }); !errors.Is(err, boom) {
			t.Fatalf("Update error = %v, want boom", err)
		}

		got, _ := s.Get(ctx, key)
		if string(got) != "ab" {
			t.Fatalf("value = %q, want ab", got)
		}
	})
}

func TestUpdateSerializes(t *testing.T) {
	forEachBackend(t, nil, func(t *testing.T, s kv.Store) {
		ctx := context.Background()
		key := kv.Key{"log"}
		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Update(ctx, key, func(old []byte, _ bool) ([]byte, error) {
					return append(old, 'x'), nil
				})
			}()
		}
		wg.Wait()
		got, _ := s.Get(ctx, key)
		if len(got) != 20 {
			t.Fatalf("len = %d, want 20 (lost update)", len(got))
		}
	})
}

func TestListPrefix(t *testing.T) {
	forEachBackend(t, nil, func(t *testing.T, s kv.Store) {
		ctx := context.Background()
		for _, k := range []kv.Key{
			{"session", "b"},
			{"session", "a"},
			{"sessions", "x"},
			{"user", "u1"},
		} {
			s.Set(ctx, k, []byte(k.String()))
		}

		var got []string
		for e, err := range s.List(ctx, kv.Key{"session"}) {
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			got = append(got, e.Key.String())
		}
		if want := []string{"session:a", "session:b"}; !slices.Equal(got, want) {
			t.Fatalf("List session = %v, want %v", got, want)
		}

		n := 0
		for range s.List(ctx, nil) {
			n++
		}
		if n != 4 {
			t.Fatalf("List all = %d entries, want 4", n)
		}
	})
}

func TestCustomSeparator(t *testing.T) {
	forEachBackend(t, &kv.Options{Separator: '/'}, func(t *testing.T, s kv.Store) {
		ctx := context.Background()
		s.Set(ctx, kv.Key{"a:b", "c"}, []byte("v"))
		var keys []kv.Key
		for e := range s.List(ctx, kv.Key{"a:b"}) {
			keys = append(keys, e.Key)
		}
		if len(keys) != 1 || !slices.Equal(keys[0], kv.Key{"a:b", "c"}) {
			t.Fatalf("List = %v", keys)
		}
	})
}

func TestValueIsolation(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory(nil)
	original := []byte("original")
	s.Set(ctx, kv.Key{"iso"}, original)
	original[0] = 'X'

	got, _ := s.Get(ctx, kv.Key{"iso"})
	if got[0] != 'o' {
		t.Fatal("store value was mutated via original slice")
	}
	got[0] = 'Y'
	if again, _ := s.Get(ctx, kv.Key{"iso"}); again[0] != 'o' {
		t.Fatal("store value was mutated via returned slice")
	}
}

func TestKeySegmentContainingSeparator(t *testing.T) {
	defer func() {
		r := recover()
		msg, _ := r.(string)
		if !strings.Contains(msg, "contains separator") {
			t.Fatalf("panic = %v", r)
		}
	}()
	kv.NewMemory(nil).Set(context.Background(), kv.Key{"bad:seg"}, nil)
}

func TestBadgerDirRequired(t *testing.T) {
	if _, err := kv.NewBadger(kv.BadgerOptions{}); err == nil {
		t.Fatal("NewBadger without Dir succeeded")
	}
}
