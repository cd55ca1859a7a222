package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"pick3-session-gateway/internal/session/domain"
	"pick3-session-gateway/internal/subscription"
	userdomain "pick3-session-gateway/internal/user/domain"
)

// PostgresRepository persists sessions to Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, user_id, email, role, first_name, last_name, phone_no,
	state_id, state_name, state_code,
	access_token, refresh_token, access_token_expires_at,
	subscription_status, subscription_fetched_at, error, created_at, updated_at`

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	stateID, stateName, stateCode := stateColumns(s.User)
	var status any
	if s.SubscriptionStatus != nil {
		status = string(*s.SubscriptionStatus)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		s.ID, s.User.ID, s.User.Email, string(s.User.Role), s.User.FirstName, s.User.LastName, s.User.PhoneNo,
		stateID, stateName, stateCode,
		s.AccessToken, s.RefreshToken, s.AccessTokenExpiresAt,
		status, s.SubscriptionFetchedAt, s.Error, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

// UpdateTokens replaces the access token and its decoded expiry.
func (r *PostgresRepository) UpdateTokens(ctx context.Context, id, accessToken string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET access_token = $2, access_token_expires_at = $3, updated_at = now()
		WHERE id = $1`, id, accessToken, expiresAt)
	return err
}

// UpdateSubscription overwrites the subscription status and resolved-at timestamp.
func (r *PostgresRepository) UpdateSubscription(ctx context.Context, id string, status *subscription.Status, fetchedAt time.Time) error {
	var v any
	if status != nil {
		v = string(*status)
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET subscription_status = $2, subscription_fetched_at = $3, updated_at = now()
		WHERE id = $1`, id, v, fetchedAt)
	return err
}

// UpdateProfile replaces the profile fields, leaving token and subscription columns untouched.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, u userdomain.User) error {
	stateID, stateName, stateCode := stateColumns(u)
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET first_name = $2, last_name = $3, phone_no = $4,
			state_id = $5, state_name = $6, state_code = $7, updated_at = now()
		WHERE id = $1`, id, u.FirstName, u.LastName, u.PhoneNo, stateID, stateName, stateCode)
	return err
}

// MarkInvalidated sets the error sentinel. The WHERE guard makes the first
// caller win so the sign-out side effect fires exactly once.
func (r *PostgresRepository) MarkInvalidated(ctx context.Context, id, sentinel string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET error = $2, updated_at = now()
		WHERE id = $1 AND error = ''`, id, sentinel)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes the session. Deleting a missing session is a no-op.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// stateColumns maps the user's state to nullable columns. The bare StateID is
// kept even when the embedded state object is absent.
func stateColumns(u userdomain.User) (stateID, stateName, stateCode any) {
	if u.StateID != 0 {
		stateID = u.StateID
	}
	if u.State != nil {
		stateID, stateName, stateCode = u.State.ID, u.State.Name, u.State.Code
	}
	return stateID, stateName, stateCode
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		s         domain.Session
		role      string
		stateID   sql.NullInt64
		stateName sql.NullString
		stateCode sql.NullString
		status    sql.NullString
	)
	err := row.Scan(
		&s.ID, &s.User.ID, &s.User.Email, &role, &s.User.FirstName, &s.User.LastName, &s.User.PhoneNo,
		&stateID, &stateName, &stateCode,
		&s.AccessToken, &s.RefreshToken, &s.AccessTokenExpiresAt,
		&status, &s.SubscriptionFetchedAt, &s.Error, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.User.Role = userdomain.Role(role)
	if stateID.Valid {
		s.User.State = &userdomain.USState{ID: stateID.Int64, Name: stateName.String, Code: stateCode.String}
		s.User.StateID = stateID.Int64
	}
	if status.Valid {
		v := subscription.Status(status.String)
		s.SubscriptionStatus = &v
	}
	return &s, nil
}
