package sessionstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/interviewer/pkg/interview"
	"github.com/haivivi/interviewer/pkg/kv"
)

var sessionPrefix = kv.Key{"session"}

func sessionKey(id string) kv.Key {
	return kv.Key{"session", id}
}

// KV stores sessions as msgpack records under session:<id>.
type KV struct {
	store kv.Store
	opts  options
}

// NewKV returns a KV session store over store. Closing it closes store.
func NewKV(store kv.Store, opts ...Option) *KV {
	return &KV{store: store, opts: buildOptions(opts)}
}

func (s *KV) CreateSession(ctx context.Context, stage interview.Stage, user string) (*interview.Session, error) {
	sess := &interview.Session{
		ID:        s.opts.newID(),
		User:      user,
		Stage:     stage,
		Status:    interview.StatusPending,
		CreatedAt: s.opts.now().UTC(),
	}
	data, err := msgpack.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: marshal session: %w", err)
	}
	err = s.store.Update(ctx, sessionKey(sess.ID), func(_ []byte, found bool) ([]byte, error) {
		if found {
			return nil, fmt.Errorf("sessionstore: session %s already exists", sess.ID)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *KV) UpdateSession(ctx context.Context, id string, u interview.Update) error {
	return s.store.Update(ctx, sessionKey(id), func(old []byte, found bool) ([]byte, error) {
		if !found {
			return nil, fmt.Errorf("sessionstore: %s: %w", id, interview.ErrNotFound)
		}
		var sess interview.Session
		if err := msgpack.Unmarshal(old, &sess); err != nil {
			return nil, fmt.Errorf("sessionstore: unmarshal session %s: %w", id, err)
		}
		interview.ApplyUpdate(&sess, u)
		return msgpack.Marshal(&sess)
	})
}

func (s *KV) GetSession(ctx context.Context, id string) (*interview.Session, error) {
	data, err := s.store.Get(ctx, sessionKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("sessionstore: %s: %w", id, interview.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var sess interview.Session
	if err := msgpack.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("sessionstore: unmarshal session %s: %w", id, err)
	}
	return &sess, nil
}

func (s *KV) ListSessions(ctx context.Context, f interview.Filter) ([]*interview.Session, error) {
	var out []*interview.Session
	for entry, err := range s.store.List(ctx, sessionPrefix) {
		if err != nil {
			return nil, err
		}
		var sess interview.Session
		if err := msgpack.Unmarshal(entry.Value, &sess); err != nil {
			return nil, fmt.Errorf("sessionstore: unmarshal %s: %w", entry.Key, err)
		}
		if f.Match(&sess) {
			out = append(out, &sess)
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *KV) Close() error {
	return s.store.Close()
}

var _ Store = (*KV)(nil)
