package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store owns the write pool and a read pool. When no replica is configured
// the read pool aliases the write pool, mirroring the single-database setup.
type Store struct {
	write *pgxpool.Pool
	read  *pgxpool.Pool
}

func NewStore(ctx context.Context, writeURL, readURL string) (*Store, error) {
	write, err := pgxpool.New(ctx, writeURL)
	if err != nil {
		return nil, fmt.Errorf("connect write pool: %w", err)
	}
	read := write
	if readURL != "" && readURL != writeURL {
		read, err = pgxpool.New(ctx, readURL)
		if err != nil {
			write.Close()
			return nil, fmt.Errorf("connect read pool: %w", err)
		}
	}
	return &Store{write: write, read: read}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.write.Ping(ctx); err != nil {
		return err
	}
	return s.read.Ping(ctx)
}

func (s *Store) Close() {
	if s.read != s.write {
		s.read.Close()
	}
	s.write.Close()
}
