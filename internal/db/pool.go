package db

import "github.com/jmoiron/sqlx"

// Pool pairs a writer and a reader connection pool.
//
// With SQLite in WAL mode the writer is a single connection and the reader
// allows concurrent SELECTs. With PostgreSQL both point at the same *sqlx.DB.
type Pool struct {
	writer *sqlx.DB
	reader *sqlx.DB
}

// NewPool creates a Pool from separate writer and reader connections.
func NewPool(writer, reader *sqlx.DB) *Pool {
	return &Pool{writer: writer, reader: reader}
}

// Writer returns the pool used for INSERT, UPDATE, DELETE and transactions.
func (p *Pool) Writer() *sqlx.DB { return p.writer }

// Reader returns the pool used for SELECT queries.
func (p *Pool) Reader() *sqlx.DB { return p.reader }

// DriverName reports the driver of the writer pool.
func (p *Pool) DriverName() string { return p.writer.DriverName() }

// Close closes both pools, once each.
func (p *Pool) Close() error {
	wErr := p.writer.Close()
	if p.reader != p.writer {
		if rErr := p.reader.Close(); rErr != nil && wErr == nil {
			return rErr
		}
	}
	return wErr
}
