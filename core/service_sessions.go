package core

import (
	"context"
	"crypto/sha256"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrInvalidRefreshToken is returned for unknown, expired, revoked and
// replayed refresh tokens alike; callers must not learn which.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// IssueRefreshSession creates a server-side session row and returns the
// refresh token string. Only the sha256 hash is persisted.
func (s *Service) IssueRefreshSession(ctx context.Context, userID, userAgent string) (string, *time.Time, error) {
	if s.pg == nil {
		return "", nil, errNoPostgres
	}
	rt := randB64(32)
	hash := hashToken(rt)
	var expPtr *time.Time
	if s.opts.RefreshTokenDuration > 0 {
		exp := time.Now().Add(s.opts.RefreshTokenDuration)
		expPtr = &exp
	}
	_, err := s.pg.Exec(ctx, `INSERT INTO auth.refresh_sessions (id, user_id, current_token_hash, expires_at, user_agent)
	      VALUES ($1,$2,$3,$4,$5)`, uuid.NewString(), userID, hash, expPtr, nullable(userAgent))
	if err != nil {
		return "", nil, err
	}
	return rt, expPtr, nil
}

// ExchangeRefreshToken rotates a refresh token and mints a new access token.
// Presenting a token that was already rotated revokes the whole session.
func (s *Service) ExchangeRefreshToken(ctx context.Context, refreshToken, userAgent string) (accessToken string, expiresAt time.Time, newRefresh string, err error) {
	if s.pg == nil {
		return "", time.Time{}, "", errNoPostgres
	}
	if strings.TrimSpace(refreshToken) == "" {
		return "", time.Time{}, "", ErrInvalidRefreshToken
	}
	h := hashToken(refreshToken)

	var sid, uid string
	sel := `SELECT id::text, user_id::text FROM auth.refresh_sessions
	        WHERE current_token_hash=$1 AND revoked_at IS NULL AND (expires_at IS NULL OR expires_at>now())`
	if err = s.pg.QueryRow(ctx, sel, h).Scan(&sid, &uid); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", time.Time{}, "", err
		}
		// A match on the previous hash is a replay of a rotated token.
		var sidPrev string
		selPrev := `SELECT id::text FROM auth.refresh_sessions WHERE previous_token_hash=$1 AND revoked_at IS NULL`
		if e2 := s.pg.QueryRow(ctx, selPrev, h).Scan(&sidPrev); e2 == nil {
			if _, e3 := s.pg.Exec(ctx, `UPDATE auth.refresh_sessions SET revoked_at=now() WHERE id=$1`, sidPrev); e3 != nil {
				log.Printf("[hasura-auth/sessions] revoke on reuse failed: %v", e3)
			}
		}
		return "", time.Time{}, "", ErrInvalidRefreshToken
	}

	newTok := randB64(32)
	upd := `UPDATE auth.refresh_sessions
	        SET previous_token_hash=current_token_hash, current_token_hash=$1, last_used_at=now(), user_agent=$2
	        WHERE id=$3 AND revoked_at IS NULL`
	tag, err := s.pg.Exec(ctx, upd, hashToken(newTok), nullable(userAgent), sid)
	if err != nil {
		return "", time.Time{}, "", err
	}
	// The session may have been revoked between the lookup and the rotation.
	if tag.RowsAffected() == 0 {
		return "", time.Time{}, "", ErrInvalidRefreshToken
	}

	accessToken, expiresAt, err = s.IssueAccessToken(ctx, uid, map[string]any{"sid": sid})
	if err != nil {
		return "", time.Time{}, "", err
	}
	return accessToken, expiresAt, newTok, nil
}

func hashToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}

func nullable(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
