package pgtracking

import (
	"context"
	"time"

	"github.com/BearBump/KasTrack/internal/kasid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const (
	maxConns       = 10
	connectTimeout = 10 * time.Second
)

// Storage is the Postgres repository for trackings, their history, statuses
// and image metadata.
type Storage struct {
	db  *pgxpool.Pool
	ids *kasid.Generator
}

// New opens a pool, creates missing tables and seeds the default statuses.
func New(connString string) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parse pg config")
	}
	if cfg.MaxConns > maxConns {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "open pg pool")
	}

	s := &Storage{db: pool, ids: kasid.New(nil)}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// WithIDGenerator replaces the KAS id source.
func (s *Storage) WithIDGenerator(g *kasid.Generator) *Storage {
	if g != nil {
		s.ids = g
	}
	return s
}

func (s *Storage) Ping(ctx context.Context) error {
	return errors.Wrap(s.db.Ping(ctx), "ping pg")
}

func (s *Storage) Close() {
	if s.db == nil {
		return
	}
	s.db.Close()
}
