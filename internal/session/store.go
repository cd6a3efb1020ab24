// Package session implements the session & token store (C8, spec.md
// §4.8): a durable Postgres-backed record of sessions and application
// tokens, fronted by a bounded LRU read cache. Mutations always come in
// through C6 as ordinary commands (CreateSession/RemoveSession/...), so
// every replica's store converges; Store itself is the apply-side sink
// the executor (C4) calls into.
package session

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/opendogma/dogma/common"
	"github.com/opendogma/dogma/common/mlog"
	"github.com/opendogma/dogma/internal/command"
)

const defaultCacheSize = 8192

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Option configures a Store.
type Option func(*Store)

func WithCacheSize(n int) Option { return func(s *Store) { s.cacheSize = n } }
func WithLogger(l mlog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store is the durable session/token store (C8).
type Store struct {
	db     *pgxpool.Pool
	logger mlog.Logger

	cacheSize    int
	sessions     *lru.Cache[string, command.Session]
	tokens       *lru.Cache[string, command.Token]
}

// New builds a Store backed by db. Call EnsureSchema once before use.
func New(db *pgxpool.Pool, opts ...Option) (*Store, error) {
	s := &Store{db: db, logger: &mlog.NoneLogger{}, cacheSize: defaultCacheSize}

	for _, opt := range opts {
		opt(s)
	}

	sessions, err := lru.New[string, command.Session](s.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("building session cache: %w", err)
	}

	tokens, err := lru.New[string, command.Token](s.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("building token cache: %w", err)
	}

	s.sessions = sessions
	s.tokens = tokens

	return s, nil
}

// EnsureSchema creates the tables this store needs if they don't exist.
// There is no migration runner here (DESIGN.md): the schema is small and
// additive, so ad hoc DDL on boot is enough.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dogma_sessions (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			creation_time BIGINT NOT NULL,
			expiration_time BIGINT NOT NULL,
			csrf_token TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS dogma_session_master_keys (
			key_id TEXT PRIMARY KEY,
			key_material BYTEA NOT NULL,
			created BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS dogma_tokens (
			app_id TEXT PRIMARY KEY,
			secret TEXT NOT NULL,
			is_system_admin BOOLEAN NOT NULL DEFAULT FALSE,
			creation BIGINT NOT NULL,
			deactivation BIGINT,
			deletion BIGINT
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return common.NewStorageIOError(fmt.Errorf("ensuring schema: %w", err))
		}
	}

	return nil
}

// CreateSession implements executor.SessionSink.
func (s *Store) CreateSession(ctx context.Context, session command.Session) error {
	query, args, err := psql.Insert("dogma_sessions").
		Columns("id", "username", "creation_time", "expiration_time", "csrf_token").
		Values(session.ID, session.Username, session.CreationTime, session.ExpirationTime, session.CsrfToken).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			creation_time = EXCLUDED.creation_time,
			expiration_time = EXCLUDED.expiration_time,
			csrf_token = EXCLUDED.csrf_token`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return common.NewStorageIOError(err)
	}

	s.sessions.Add(session.ID, session)

	return nil
}

// RemoveSession implements executor.SessionSink.
func (s *Store) RemoveSession(ctx context.Context, id string) error {
	query, args, err := psql.Delete("dogma_sessions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return common.NewStorageIOError(err)
	}

	s.sessions.Remove(id)

	return nil
}

// CreateMasterKey implements executor.SessionSink.
func (s *Store) CreateMasterKey(ctx context.Context, mk command.MasterKey) error {
	query, args, err := psql.Insert("dogma_session_master_keys").
		Columns("key_id", "key_material", "created").
		Values(mk.KeyID, mk.Key, mk.Created).
		Suffix("ON CONFLICT (key_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return common.NewStorageIOError(err)
	}

	return nil
}

// CreateToken implements executor.SessionSink.
func (s *Store) CreateToken(ctx context.Context, token command.Token) error {
	query, args, err := psql.Insert("dogma_tokens").
		Columns("app_id", "secret", "is_system_admin", "creation").
		Values(token.AppID, token.Secret, token.IsSystemAdmin, token.Creation).
		Suffix(`ON CONFLICT (app_id) DO UPDATE SET
			secret = EXCLUDED.secret,
			is_system_admin = EXCLUDED.is_system_admin,
			creation = EXCLUDED.creation`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return common.NewStorageIOError(err)
	}

	s.tokens.Add(token.AppID, token)

	return nil
}

// DeactivateToken implements executor.SessionSink. Tokens are never
// auto-expired (spec.md §4.8), only deactivated or deleted outright.
func (s *Store) DeactivateToken(ctx context.Context, appID string) error {
	query, args, err := psql.Update("dogma_tokens").
		Set("deactivation", sq.Expr("EXTRACT(EPOCH FROM now()) * 1000")).
		Where(sq.Eq{"app_id": appID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return common.NewStorageIOError(err)
	}

	s.tokens.Remove(appID)

	return nil
}

// DeleteToken implements executor.SessionSink.
func (s *Store) DeleteToken(ctx context.Context, appID string) error {
	query, args, err := psql.Delete("dogma_tokens").Where(sq.Eq{"app_id": appID}).ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return common.NewStorageIOError(err)
	}

	s.tokens.Remove(appID)

	return nil
}

// GetSession looks up a session, cache first.
func (s *Store) GetSession(ctx context.Context, id string) (command.Session, bool, error) {
	if session, ok := s.sessions.Get(id); ok {
		return session, true, nil
	}

	query, args, err := psql.Select("id", "username", "creation_time", "expiration_time", "csrf_token").
		From("dogma_sessions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return command.Session{}, false, fmt.Errorf("building select: %w", err)
	}

	var session command.Session

	err = s.db.QueryRow(ctx, query, args...).Scan(
		&session.ID, &session.Username, &session.CreationTime, &session.ExpirationTime, &session.CsrfToken)
	if err != nil {
		if err == pgx.ErrNoRows {
			return command.Session{}, false, nil
		}

		return command.Session{}, false, common.NewStorageIOError(err)
	}

	s.sessions.Add(session.ID, session)

	return session, true, nil
}

// ListExpiredSessions returns session IDs with expirationTime <= asOf, for
// the sweeper (spec.md §4.8).
func (s *Store) ListExpiredSessions(ctx context.Context, asOf int64) ([]string, error) {
	query, args, err := psql.Select("id").From("dogma_sessions").
		Where(sq.LtOrEq{"expiration_time": asOf}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, common.NewStorageIOError(err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, common.NewStorageIOError(err)
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}
