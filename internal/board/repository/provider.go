package repository

import (
	"github.com/jmoiron/sqlx"

	"github.com/kandev/taskboard/internal/board/repository/sqlite"
)

var _ Repository = (*sqlite.Repository)(nil)

// Provide creates the board repository on the shared pools. A nil writer
// selects the in-memory repository.
func Provide(writer, reader *sqlx.DB) (Repository, func() error, error) {
	if writer == nil {
		repo := NewMemoryRepository()
		return repo, repo.Close, nil
	}
	repo, err := sqlite.NewWithDB(writer, reader)
	if err != nil {
		return nil, nil, err
	}
	return repo, repo.Close, nil
}
