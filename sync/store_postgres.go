package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS objects (
	id            TEXT PRIMARY KEY,
	entity        TEXT NOT NULL,
	data          JSONB NOT NULL,
	date_created  TIMESTAMPTZ NOT NULL DEFAULT now(),
	date_modified TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS objects_entity_date_created ON objects (entity, date_created);
CREATE TABLE IF NOT EXISTS synchronizations (
	id                  UUID PRIMARY KEY,
	object_id           TEXT NOT NULL REFERENCES objects (id) ON DELETE CASCADE,
	source              TEXT NOT NULL,
	entity              TEXT NOT NULL,
	mapping             TEXT NOT NULL DEFAULT '',
	last_synced         TIMESTAMPTZ,
	source_last_changed TIMESTAMPTZ,
	last_checked        TIMESTAMPTZ,
	hash                TEXT NOT NULL DEFAULT '',
	date_created        TIMESTAMPTZ NOT NULL DEFAULT now(),
	date_modified       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (object_id, source, entity)
);`

// PostgresStore persists objects and synchronizations in PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// OpenPostgresStore connects with a lib/pq DSN and verifies the connection.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPostgresStore(db), nil
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// objectRow carries data as text, lib/pq would otherwise send []byte as bytea.
type objectRow struct {
	ID           string    `db:"id"`
	Entity       string    `db:"entity"`
	Data         string    `db:"data"`
	DateCreated  time.Time `db:"date_created"`
	DateModified time.Time `db:"date_modified"`
}

func (s *PostgresStore) FindObject(ctx context.Context, id string) (Object, error) {
	var row objectRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, entity, data, date_created, date_modified FROM objects WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Object{}, ErrObjectNotFound
		}
		return Object{}, fmt.Errorf("find object: %w", err)
	}
	return Object{
		ID:           row.ID,
		Entity:       row.Entity,
		Data:         []byte(row.Data),
		DateCreated:  row.DateCreated,
		DateModified: row.DateModified,
	}, nil
}

func (s *PostgresStore) SaveObject(ctx context.Context, object Object) error {
	if object.DateCreated.IsZero() {
		object.DateCreated = time.Now()
	}
	if object.DateModified.IsZero() {
		object.DateModified = object.DateCreated
	}
	row := objectRow{
		ID:           object.ID,
		Entity:       object.Entity,
		Data:         string(object.Data),
		DateCreated:  object.DateCreated,
		DateModified: object.DateModified,
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO objects (id, entity, data, date_created, date_modified)
		VALUES (:id, :entity, CAST(:data AS JSONB), :date_created, :date_modified)
		ON CONFLICT (id) DO UPDATE SET
			entity = EXCLUDED.entity,
			data = EXCLUDED.data,
			date_modified = EXCLUDED.date_modified`, row)
	if err != nil {
		return fmt.Errorf("save object: %w", err)
	}
	return nil
}

type synchronizationRow struct {
	ID                string       `db:"id"`
	ObjectID          string       `db:"object_id"`
	Source            string       `db:"source"`
	Entity            string       `db:"entity"`
	Mapping           string       `db:"mapping"`
	LastSynced        sql.NullTime `db:"last_synced"`
	SourceLastChanged sql.NullTime `db:"source_last_changed"`
	LastChecked       sql.NullTime `db:"last_checked"`
	Hash              string       `db:"hash"`
	DateCreated       time.Time    `db:"date_created"`
	DateModified      time.Time    `db:"date_modified"`
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func (r synchronizationRow) toSynchronization() (Synchronization, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return Synchronization{}, fmt.Errorf("parse synchronization id: %w", err)
	}
	return Synchronization{
		ID:                id,
		ObjectID:          r.ObjectID,
		Source:            r.Source,
		Entity:            r.Entity,
		Mapping:           r.Mapping,
		LastSynced:        r.LastSynced.Time,
		SourceLastChanged: r.SourceLastChanged.Time,
		LastChecked:       r.LastChecked.Time,
		Hash:              r.Hash,
		DateCreated:       r.DateCreated,
		DateModified:      r.DateModified,
	}, nil
}

func (s *PostgresStore) FindSynchronization(ctx context.Context, objectID, source, entity string) (Synchronization, error) {
	var row synchronizationRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, object_id, source, entity, mapping, last_synced, source_last_changed,
		       last_checked, hash, date_created, date_modified
		FROM synchronizations
		WHERE object_id = $1 AND source = $2 AND entity = $3`, objectID, source, entity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Synchronization{}, ErrSynchronizationNotFound
		}
		return Synchronization{}, fmt.Errorf("find synchronization: %w", err)
	}
	return row.toSynchronization()
}

func (s *PostgresStore) SaveSynchronization(ctx context.Context, sync Synchronization) error {
	row := synchronizationRow{
		ID:                sync.ID.String(),
		ObjectID:          sync.ObjectID,
		Source:            sync.Source,
		Entity:            sync.Entity,
		Mapping:           sync.Mapping,
		LastSynced:        nullTime(sync.LastSynced),
		SourceLastChanged: nullTime(sync.SourceLastChanged),
		LastChecked:       nullTime(sync.LastChecked),
		Hash:              sync.Hash,
		DateCreated:       sync.DateCreated,
		DateModified:      sync.DateModified,
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO synchronizations (id, object_id, source, entity, mapping, last_synced,
			source_last_changed, last_checked, hash, date_created, date_modified)
		VALUES (:id, :object_id, :source, :entity, :mapping, :last_synced,
			:source_last_changed, :last_checked, :hash, :date_created, :date_modified)
		ON CONFLICT (object_id, source, entity) DO UPDATE SET
			mapping = EXCLUDED.mapping,
			last_synced = EXCLUDED.last_synced,
			source_last_changed = EXCLUDED.source_last_changed,
			last_checked = EXCLUDED.last_checked,
			hash = EXCLUDED.hash,
			date_modified = EXCLUDED.date_modified`, row)
	if err != nil {
		return fmt.Errorf("save synchronization: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteObjectsCreatedBefore(ctx context.Context, entity string, before time.Time) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin cleanup: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM objects WHERE entity = $1 AND date_created < $2`, entity, before)
	if err != nil {
		return 0, fmt.Errorf("delete objects: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete objects: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit cleanup: %w", err)
	}
	return int(deleted), nil
}
