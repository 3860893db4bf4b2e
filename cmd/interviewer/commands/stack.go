package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/haivivi/interviewer/pkg/cli"
	"github.com/haivivi/interviewer/pkg/interview"
	"github.com/haivivi/interviewer/pkg/sessionstore"
	"github.com/haivivi/interviewer/pkg/storage"
)

// stack is the persistence side of a context: the session store, the
// optional transcript archive and the lifecycle manager over both.
type stack struct {
	store    sessionstore.Store
	archiver *interview.Archiver
	manager  *interview.Manager
	http     *http.Client
}

// openStack opens the stores configured in ctx. Default locations live
// under the context's data directory.
func openStack(ctx *cli.Context, paths *cli.Paths, logger *slog.Logger) (*stack, error) {
	backend := ctx.Store.Backend
	if backend == "" {
		backend = sessionstore.BackendMemory
	}
	storePath := ctx.Store.Path
	if storePath == "" && backend != sessionstore.BackendMemory {
		if err := paths.EnsureDataDir(ctx.Name); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		storePath = paths.StorePath(ctx.Name, backend)
	}
	store, err := sessionstore.Open(backend, storePath)
	if err != nil {
		return nil, err
	}

	s := &stack{store: store, http: &http.Client{}}
	if ctx.Timeout > 0 {
		s.http.Timeout = time.Duration(ctx.Timeout) * time.Second
	}

	if loc := ctx.Archive.Location; loc != "" {
		if loc == "local" {
			loc = paths.ArchiveDir(ctx.Name)
		}
		fs, err := storage.Open(loc, storage.S3Options{
			Region:    ctx.Archive.S3Region,
			Endpoint:  ctx.Archive.S3Endpoint,
			AccessKey: ctx.Archive.S3AccessKey,
			SecretKey: ctx.Archive.S3SecretKey,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
		s.archiver = interview.NewArchiver(fs)
	}

	mcfg := interview.ManagerConfig{Store: store, Logger: logger}
	if s.archiver != nil {
		mcfg.Archiver = s.archiver
	}
	if ctx.FeedbackURL != "" {
		mcfg.Notifier = interview.NewWebhook(ctx.FeedbackURL, ctx.APIKey, s.http)
	}
	s.manager = interview.NewManager(mcfg)
	return s, nil
}

// Close waits for pending completion notifications, then closes the store.
func (s *stack) Close() error {
	s.manager.Wait()
	return s.store.Close()
}

var errNoArchive = errors.New("no archive configured for this context")
