// Package store persists reports so that later commands (browse, serve)
// can read the outcome of the last generate run.
//
// Two backends implement [Store]: [FileStore] keeps one JSON file per run
// in a directory, [MongoStore] keeps one document per run in a MongoDB
// collection. [Open] picks one from configuration.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/matzehuels/compkgs/pkg/report"
)

// Store saves and loads reports.
type Store interface {
	// Save persists rep under its RunID.
	Save(ctx context.Context, rep *report.Report) error
	// Latest returns the most recently created report, or a NOT_FOUND
	// error if there is none.
	Latest(ctx context.Context) (*report.Report, error)
	// Get returns the report of a run, or a NOT_FOUND error.
	Get(ctx context.Context, runID string) (*report.Report, error)
	// List returns up to limit runs, newest first. A limit <= 0 lists all.
	List(ctx context.Context, limit int) ([]Info, error)
	Close() error
}

// Info summarizes a stored run without its component results.
type Info struct {
	RunID     string         `json:"run_id" bson:"_id"`
	Version   string         `json:"version" bson:"version"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
	Summary   report.Summary `json:"summary" bson:"summary"`
}

func infoOf(rep *report.Report) Info {
	return Info{RunID: rep.RunID, Version: rep.Version, CreatedAt: rep.CreatedAt, Summary: rep.Summary}
}

// Backend names accepted by [Open].
const (
	BackendFile  = "file"
	BackendMongo = "mongo"
	BackendNone  = "none"
)

// Config selects and configures a backend.
type Config struct {
	Backend       string
	Dir           string // FileStore directory; defaults to [DefaultDir]
	MongoURI      string
	MongoDatabase string
}

// Open creates the backend described by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendFile:
		s, err := NewFileStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendMongo:
		s, err := NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendNone:
		return Discard{}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q (available: file, mongo, none)", cfg.Backend)
	}
}
