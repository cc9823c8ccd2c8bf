package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// User is the local account a provider identity resolves to.
type User struct {
	ID          string
	Email       *string
	DisplayName *string
	AvatarURL   *string
	Locale      string
	DefaultRole string
	Metadata    map[string]string
	CreatedAt   time.Time
}

// ProviderLink is the durable association between a local user and one
// external identity on one provider. (provider_id, provider_user_id) is
// unique across the store.
type ProviderLink struct {
	UserID         string
	ProviderID     string
	ProviderUserID string
	AccessToken    string
	RefreshToken   string
}

// NewUser carries the profile-and-options-derived fields for user creation.
type NewUser struct {
	Email        *string
	DisplayName  string
	AvatarURL    string
	Locale       string
	DefaultRole  string
	AllowedRoles []string
	Metadata     map[string]string
}

// UserStore is the data-access surface the callback handler links against.
// *Service implements it over Postgres; tests use fakes.
type UserStore interface {
	// GetProviderLink returns nil when (providerID, providerUserID) is unseen.
	GetProviderLink(ctx context.Context, providerID, providerUserID string) (*ProviderLink, error)
	UpdateProviderLinkTokens(ctx context.Context, providerID, providerUserID, accessToken, refreshToken string) error
	// GetUserByEmail returns nil when no user carries the email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	LinkProvider(ctx context.Context, userID string, link ProviderLink) error
	// CreateUserWithLink creates the user and its first provider link in one
	// transaction.
	CreateUserWithLink(ctx context.Context, u NewUser, link ProviderLink) (*User, error)
}

// TokenIssuer mints the application refresh token handed back to the client.
type TokenIssuer interface {
	IssueRefreshSession(ctx context.Context, userID, userAgent string) (refreshToken string, expiresAt *time.Time, err error)
}

var errNoPostgres = errors.New("postgres not configured")

func (s *Service) GetProviderLink(ctx context.Context, providerID, providerUserID string) (*ProviderLink, error) {
	if s.pg == nil {
		return nil, errNoPostgres
	}
	row := s.pg.QueryRow(ctx, `SELECT user_id::text, provider_id, provider_user_id, COALESCE(access_token,''), COALESCE(refresh_token,'')
	      FROM auth.user_providers WHERE provider_id=$1 AND provider_user_id=$2`, providerID, providerUserID)
	var l ProviderLink
	if err := row.Scan(&l.UserID, &l.ProviderID, &l.ProviderUserID, &l.AccessToken, &l.RefreshToken); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

func (s *Service) UpdateProviderLinkTokens(ctx context.Context, providerID, providerUserID, accessToken, refreshToken string) error {
	if s.pg == nil {
		return errNoPostgres
	}
	tag, err := s.pg.Exec(ctx, `UPDATE auth.user_providers
	      SET access_token=$3, refresh_token=$4, updated_at=now()
	      WHERE provider_id=$1 AND provider_user_id=$2`, providerID, providerUserID, accessToken, refreshToken)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("provider link %s/%s not found", providerID, providerUserID)
	}
	return nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	if s.pg == nil {
		return nil, errNoPostgres
	}
	row := s.pg.QueryRow(ctx, `SELECT id::text, email, display_name, avatar_url, locale, default_role, metadata, created_at
	      FROM auth.users WHERE lower(email)=lower($1) AND deleted_at IS NULL`, email)
	return scanUser(row)
}

func (s *Service) getUserByID(ctx context.Context, id string) (*User, error) {
	if s.pg == nil {
		return nil, errNoPostgres
	}
	row := s.pg.QueryRow(ctx, `SELECT id::text, email, display_name, avatar_url, locale, default_role, metadata, created_at
	      FROM auth.users WHERE id=$1 AND deleted_at IS NULL`, id)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.AvatarURL, &u.Locale, &u.DefaultRole, &u.Metadata, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *Service) LinkProvider(ctx context.Context, userID string, link ProviderLink) error {
	if s.pg == nil {
		return errNoPostgres
	}
	_, err := s.pg.Exec(ctx, `INSERT INTO auth.user_providers (user_id, provider_id, provider_user_id, access_token, refresh_token)
	      VALUES ($1,$2,$3,$4,$5)`, userID, link.ProviderID, link.ProviderUserID, link.AccessToken, link.RefreshToken)
	return err
}

func (s *Service) CreateUserWithLink(ctx context.Context, u NewUser, link ProviderLink) (*User, error) {
	if s.pg == nil {
		return nil, errNoPostgres
	}
	tx, err := s.pg.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	meta := u.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	var created User
	err = tx.QueryRow(ctx, `INSERT INTO auth.users (id, email, display_name, avatar_url, locale, default_role, metadata)
	      VALUES ($1, lower($2), NULLIF($3,''), NULLIF($4,''), $5, $6, $7)
	      RETURNING id::text, email, display_name, avatar_url, locale, default_role, metadata, created_at`,
		uuid.NewString(), u.Email, u.DisplayName, u.AvatarURL, u.Locale, u.DefaultRole, meta).
		Scan(&created.ID, &created.Email, &created.DisplayName, &created.AvatarURL, &created.Locale, &created.DefaultRole, &created.Metadata, &created.CreatedAt)
	if err != nil {
		return nil, err
	}
	for _, role := range u.AllowedRoles {
		if _, err := tx.Exec(ctx, `INSERT INTO auth.user_roles (user_id, role) VALUES ($1,$2) ON CONFLICT DO NOTHING`, created.ID, role); err != nil {
			return nil, err
		}
	}
	if _, err := tx.Exec(ctx, `INSERT INTO auth.user_providers (user_id, provider_id, provider_user_id, access_token, refresh_token)
	      VALUES ($1,$2,$3,$4,$5)`, created.ID, link.ProviderID, link.ProviderUserID, link.AccessToken, link.RefreshToken); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &created, nil
}
