// Package snapshot persists a built index and its line store so a process can
// skip the corpus build on start. A snapshot is loaded whole or not at all.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/postgres"
)

// Snapshot is a built index with the identity of the build that produced it.
type Snapshot struct {
	Index      *index.Index
	Generation string
	CreatedAt  time.Time
}

// validate rejects a snapshot no backend could save.
func (s Snapshot) validate() error {
	if s.Index == nil {
		return fmt.Errorf("%w: snapshot has no index", apperrors.ErrInvalidInput)
	}
	if s.Generation == "" {
		return fmt.Errorf("%w: snapshot has no generation", apperrors.ErrInvalidInput)
	}
	return nil
}

// Gateway saves and loads snapshots. Load returns an error wrapping
// ErrSnapshotNotFound when nothing was saved and ErrSnapshotCorrupt when what
// was saved cannot be read back in full.
type Gateway interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
	Close() error
}

// Open builds the gateway selected by cfg.Snapshot.Backend. It returns a nil
// Gateway for the "none" backend.
func Open(ctx context.Context, cfg *config.Config) (Gateway, error) {
	switch cfg.Snapshot.Backend {
	case config.BackendFile:
		return NewFileGateway(cfg.Snapshot.Dir), nil
	case config.BackendSQLite:
		return OpenSQLite(ctx, cfg.Snapshot.SQLitePath)
	case config.BackendPostgres:
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return OpenPostgres(ctx, client)
	case config.BackendNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Snapshot.Backend)
	}
}
