package auth_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/runbook-hub/runbook-hub/internal/auth"
	"github.com/runbook-hub/runbook-hub/internal/settings"
	"github.com/runbook-hub/runbook-hub/internal/shared"
	_ "github.com/runbook-hub/runbook-hub/testing"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(ctx context.Context, project, key string, dest any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[project+"/"+key]
	if !ok {
		return shared.ErrNotFound
	}
	return json.Unmarshal(raw, dest)
}

func (s *memStore) Set(ctx context.Context, project, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.data[project+"/"+key] = raw
	return nil
}

func (s *memStore) Update(ctx context.Context, project, key string, fn settings.UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(s.data[project+"/"+key])
	if err != nil {
		return err
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return err
	}
	s.data[project+"/"+key] = raw
	return nil
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := auth.NewService(newMemStore(), "proj")
	ctx := context.Background()

	account, err := svc.Register(ctx, "alice@test.local", "Alice", "correct horse")
	require.NoError(t, err)
	require.NotEmpty(t, account.ID)
	require.True(t, account.IsActive)
	require.NotEqual(t, "correct horse", account.PasswordHash)

	got, err := svc.Authenticate(ctx, "alice@test.local", "correct horse")
	require.NoError(t, err)
	require.Equal(t, account.ID, got.ID)
}

func TestAuthenticateIsCaseInsensitiveOnEmail(t *testing.T) {
	svc := auth.NewService(newMemStore(), "proj")
	ctx := context.Background()

	_, err := svc.Register(ctx, "Alice@Test.Local", "Alice", "correct horse")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "alice@test.local", "correct horse")
	require.NoError(t, err)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc := auth.NewService(newMemStore(), "proj")
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@test.local", "Alice", "correct horse")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "alice@test.local", "wrong horse")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	svc := auth.NewService(newMemStore(), "proj")

	_, err := svc.Authenticate(context.Background(), "nobody@test.local", "whatever")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := auth.NewService(newMemStore(), "proj")
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@test.local", "Alice", "correct horse")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "ALICE@test.local", "Other Alice", "other password")
	require.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestHasAccounts(t *testing.T) {
	svc := auth.NewService(newMemStore(), "proj")
	ctx := context.Background()

	has, err := svc.HasAccounts(ctx)
	require.NoError(t, err)
	require.False(t, has)

	_, err = svc.Register(ctx, "alice@test.local", "Alice", "correct horse")
	require.NoError(t, err)

	has, err = svc.HasAccounts(ctx)
	require.NoError(t, err)
	require.True(t, has)
}

func TestFindByID(t *testing.T) {
	svc := auth.NewService(newMemStore(), "proj")
	ctx := context.Background()

	account, err := svc.Register(ctx, "alice@test.local", "Alice", "correct horse")
	require.NoError(t, err)

	got, err := svc.FindByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, "Alice", got.Name)

	_, err = svc.FindByID(ctx, "missing")
	require.ErrorIs(t, err, shared.ErrNotFound)
}
