package auth

import (
	"context"
	"database/sql"

	"golang.org/x/crypto/bcrypt"

	"github.com/rmoraes/epistock/internal/store"
)

// Verifier checks the shared operator password. Injected into the login
// handler so the credential source stays configurable.
type Verifier interface {
	Verify(ctx context.Context, password string) (bool, error)
}

// StoreVerifier verifies against the bcrypt hash kept in the settings table.
type StoreVerifier struct {
	DB *sql.DB
}

func (v *StoreVerifier) Verify(ctx context.Context, password string) (bool, error) {
	hash, err := store.GetAdminPasswordHash(ctx, v.DB)
	if err != nil {
		return false, err
	}
	if hash == "" {
		// No credential configured yet; fail closed.
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}
