package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/runbook-hub/runbook-hub/internal/settings"
	"github.com/runbook-hub/runbook-hub/internal/shared"
)

// directoryKey is the settings store key holding the account directory.
const directoryKey = "users"

// ErrEmailTaken occurs when registering an address that already exists.
var ErrEmailTaken = errors.New("auth: email already registered")

// Service manages the project account directory.
type Service struct {
	store   settings.Store
	project string
	now     func() time.Time
}

// NewService constructs a Service scoped to the given project.
func NewService(store settings.Store, projectID string) *Service {
	return &Service{store: store, project: projectID, now: time.Now}
}

// Authenticate verifies the credentials and returns the matching account.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Account, error) {
	accounts, err := s.directory(ctx)
	if err != nil {
		return Account{}, err
	}
	for _, account := range accounts {
		if !strings.EqualFold(account.Email, email) {
			continue
		}
		if !account.IsActive {
			return Account{}, shared.ErrInvalidCredentials
		}
		if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
			return Account{}, shared.ErrInvalidCredentials
		}
		return account, nil
	}
	return Account{}, shared.ErrInvalidCredentials
}

// FindByID returns the account with the given id.
func (s *Service) FindByID(ctx context.Context, id string) (Account, error) {
	accounts, err := s.directory(ctx)
	if err != nil {
		return Account{}, err
	}
	for _, account := range accounts {
		if account.ID == id {
			return account, nil
		}
	}
	return Account{}, shared.ErrNotFound
}

// HasAccounts reports whether the directory holds at least one account.
func (s *Service) HasAccounts(ctx context.Context) (bool, error) {
	accounts, err := s.directory(ctx)
	if err != nil {
		return false, err
	}
	return len(accounts) > 0, nil
}

// Register creates a new account with a bcrypt hashed password.
func (s *Service) Register(ctx context.Context, email, name, password string) (Account, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}
	account := Account{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedDate:  s.now().UTC(),
	}
	err = s.store.Update(ctx, s.project, directoryKey, func(raw []byte) (any, error) {
		var accounts []Account
		if raw != nil {
			if err := json.Unmarshal(raw, &accounts); err != nil {
				return nil, fmt.Errorf("auth: decode directory: %w", err)
			}
		}
		for _, existing := range accounts {
			if strings.EqualFold(existing.Email, email) {
				return nil, ErrEmailTaken
			}
		}
		return append(accounts, account), nil
	})
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

func (s *Service) directory(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := s.store.Get(ctx, s.project, directoryKey, &accounts); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return accounts, nil
}
