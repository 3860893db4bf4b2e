package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/haivivi/interviewer/pkg/storage"
)

// Archiver writes finished sessions to a file store:
//
//	sessions/<id>/transcript.json
//	sessions/<id>/turn-<n>.pcm
type Archiver struct {
	fs storage.FileStore
}

// NewArchiver returns an Archiver over fs.
func NewArchiver(fs storage.FileStore) *Archiver {
	return &Archiver{fs: fs}
}

// TranscriptPath returns the archive path of a session's transcript.
func TranscriptPath(id string) string {
	return path.Join("sessions", id, "transcript.json")
}

// TurnAudioPath returns the archive path of the n-th candidate turn (from 1).
func TurnAudioPath(id string, n int) string {
	return path.Join("sessions", id, fmt.Sprintf("turn-%d.pcm", n))
}

// Archive writes the session record and any turn audio.
func (a *Archiver) Archive(ctx context.Context, s *Session, turns [][]byte) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("interview: marshal transcript: %w", err)
	}
	var errs []error
	if err := a.put(ctx, TranscriptPath(s.ID), data); err != nil {
		errs = append(errs, err)
	}
	for i, audio := range turns {
		if err := a.put(ctx, TurnAudioPath(s.ID, i+1), audio); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Load reads an archived session record.
func (a *Archiver) Load(ctx context.Context, id string) (*Session, error) {
	data, err := a.fs.Get(ctx, TranscriptPath(id))
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("interview: decode archived session %s: %w", id, err)
	}
	return &s, nil
}

// Has reports whether a transcript is archived for id.
func (a *Archiver) Has(ctx context.Context, id string) (bool, error) {
	return a.fs.Exists(ctx, TranscriptPath(id))
}

// Purge removes the transcript and every turn recording of id.
func (a *Archiver) Purge(ctx context.Context, id string) error {
	if err := a.fs.Delete(ctx, TranscriptPath(id)); err != nil {
		return fmt.Errorf("interview: purge %s: %w", id, err)
	}
	for n := 1; ; n++ {
		p := TurnAudioPath(id, n)
		ok, err := a.fs.Exists(ctx, p)
		if err != nil {
			return fmt.Errorf("interview: purge %s: %w", p, err)
		}
		if !ok {
			return nil
		}
		if err := a.fs.Delete(ctx, p); err != nil {
			return fmt.Errorf("interview: purge %s: %w", p, err)
		}
	}
}

func (a *Archiver) put(ctx context.Context, p string, data []byte) error {
	if err := a.fs.Put(ctx, p, data); err != nil {
		return fmt.Errorf("interview: archive %s: %w", p, err)
	}
	return nil
}
