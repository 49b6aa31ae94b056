package identity

import (
	"context"
	"database/sql"
	"errors"
)

// Identity is the public profile of a user. Password hash and refresh token
// are never selected.
type Identity struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

var ErrUserNotFound = errors.New("user not found")

type IIdentityService interface {
	GetIdentity(ctx context.Context, userID string) (*Identity, error)
}

type identityService struct {
	db *sql.DB
}

func NewIdentityService(db *sql.DB) IIdentityService {
	return &identityService{db: db}
}

func (svc *identityService) GetIdentity(ctx context.Context, userID string) (*Identity, error) {
	const q = `SELECT id, name, email, coalesce(avatar,'') FROM users WHERE id = $1`
	id := &Identity{}
	err := svc.db.QueryRowContext(ctx, q, userID).Scan(&id.ID, &id.Name, &id.Email, &id.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return id, nil
}
