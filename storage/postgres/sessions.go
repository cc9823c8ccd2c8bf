package postgresstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/hk-meko/hasura-auth/handshake"
)

type sessionRow struct {
	bun.BaseModel `bun:"table:auth.handshake_sessions,alias:hs"`

	ID        string    `bun:"id,pk"`
	Data      []byte    `bun:"data"`
	ExpiresAt time.Time `bun:"expires_at"`
}

// Sessions is a Postgres-backed handshake store. Expired rows are skipped on
// load and reaped by the periodic purge job.
type Sessions struct {
	db  *bun.DB
	ttl time.Duration
}

// NewSessions wraps a database/sql handle (e.g. pgx stdlib) with bun.
func NewSessions(sqldb *sql.DB, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Sessions{db: bun.NewDB(sqldb, pgdialect.New()), ttl: ttl}
}

func (s *Sessions) Create(ctx context.Context, sess handshake.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	row := &sessionRow{ID: sess.ID, Data: data, ExpiresAt: time.Now().Add(s.ttl)}
	_, err = s.db.NewInsert().Model(row).Exec(ctx)
	return err
}

func (s *Sessions) Load(ctx context.Context, id string) (handshake.Session, bool, error) {
	row := new(sessionRow)
	err := s.db.NewSelect().Model(row).
		Where("hs.id = ?", id).
		Where("hs.expires_at > now()").
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return handshake.Session{}, false, nil
	}
	if err != nil {
		return handshake.Session{}, false, err
	}
	var sess handshake.Session
	if err := json.Unmarshal(row.Data, &sess); err != nil {
		return handshake.Session{}, false, err
	}
	return sess, true, nil
}

func (s *Sessions) Save(ctx context.Context, sess handshake.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	res, err := s.db.NewUpdate().Model((*sessionRow)(nil)).
		Set("data = ?", data).
		Where("id = ?", sess.ID).
		Where("expires_at > now()").
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("unknown session")
	}
	return nil
}

func (s *Sessions) Destroy(ctx context.Context, id string) error {
	_, err := s.db.NewDelete().Model((*sessionRow)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// PurgeExpired deletes handshake rows whose TTL has passed and returns how
// many were reaped. Called by the riverjobs purge worker.
func (s *Sessions) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.NewDelete().Model((*sessionRow)(nil)).
		Where("expires_at <= now()").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
