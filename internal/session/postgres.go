package session

import (
	"context"
	"errors"

	"golang.org/x/oauth2"

	"github.com/justestif/go-spotify-genome/internal/db"
)

// PostgresBackend stores sessions in the PostgreSQL sessions table.
type PostgresBackend struct {
	repo *db.SessionRepository
}

// NewPostgresBackend creates a backend over database.
func NewPostgresBackend(database *db.DB) *PostgresBackend {
	return &PostgresBackend{repo: database.Sessions()}
}

// Save inserts s.
func (p *PostgresBackend) Save(ctx context.Context, s *Session) error {
	return p.repo.Create(ctx, &db.Session{
		ID:           s.ID,
		UserID:       s.UserID,
		UserName:     s.UserName,
		AccessToken:  s.Token.AccessToken,
		RefreshToken: s.Token.RefreshToken,
		TokenType:    s.Token.TokenType,
		TokenExpiry:  s.Token.Expiry,
		CreatedAt:    s.CreatedAt,
		ExpiresAt:    s.ExpiresAt,
	})
}

// Load reads an unexpired session.
func (p *PostgresBackend) Load(ctx context.Context, id string) (*Session, error) {
	row, err := p.repo.Get(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:       row.ID,
		UserID:   row.UserID,
		UserName: row.UserName,
		Token: &oauth2.Token{
			AccessToken:  row.AccessToken,
			RefreshToken: row.RefreshToken,
			TokenType:    row.TokenType,
			Expiry:       row.TokenExpiry,
		},
		CreatedAt: row.CreatedAt,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

// UpdateToken stores a refreshed token.
func (p *PostgresBackend) UpdateToken(ctx context.Context, id string, token *oauth2.Token) error {
	err := p.repo.UpdateToken(ctx, id, token.AccessToken, token.RefreshToken, token.TokenType, token.Expiry)
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// Delete removes a session.
func (p *PostgresBackend) Delete(ctx context.Context, id string) error {
	return p.repo.Delete(ctx, id)
}
