package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"frontdesk/internal/config"
	"frontdesk/internal/dto"
	"frontdesk/internal/model"
	"frontdesk/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// ── In-memory OperatorRepository stub ────────────────────────────────────────

type stubOperatorRepo struct {
	mu        sync.Mutex
	operators map[uuid.UUID]*model.Operator
}

func newStubOperatorRepo() *stubOperatorRepo {
	return &stubOperatorRepo{operators: make(map[uuid.UUID]*model.Operator)}
}

func (r *stubOperatorRepo) Create(_ context.Context, o *model.Operator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	for _, existing := range r.operators {
		if existing.Username == o.Username {
			return errors.New("duplicate username")
		}
	}
	cloned := *o
	r.operators[o.ID] = &cloned
	return nil
}

func (r *stubOperatorRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.operators[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return o, nil
}

func (r *stubOperatorRepo) FindByUsername(_ context.Context, username string) (*model.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.operators {
		if o.Username == username && o.Active {
			return o, nil
		}
	}
	return nil, errors.New("record not found")
}

func (r *stubOperatorRepo) List(_ context.Context) ([]model.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Operator
	for _, o := range r.operators {
		if o.Active {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *stubOperatorRepo) ListAll(_ context.Context) ([]model.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Operator
	for _, o := range r.operators {
		out = append(out, *o)
	}
	return out, nil
}

func (r *stubOperatorRepo) Update(_ context.Context, o *model.Operator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cloned := *o
	r.operators[o.ID] = &cloned
	return nil
}

func (r *stubOperatorRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.operators[id]
	if !ok {
		return errors.New("record not found")
	}
	o.Active = false
	return nil
}

func (r *stubOperatorRepo) Reactivate(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.operators[id]
	if !ok {
		return errors.New("record not found")
	}
	o.Active = true
	return nil
}

var _ repository.OperatorRepository = (*stubOperatorRepo)(nil)

// ── Fixtures ─────────────────────────────────────────────────────────────────

func authTestConfig() *config.Config {
	return &config.Config{
		JWTSecret:          "test-secret",
		JWTExpirationHours: 8,
		JWTRefreshHours:    72,
	}
}

func seedOperator(t *testing.T, repo *stubOperatorRepo, username, password, role string) *model.Operator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	op := &model.Operator{
		Username:     username,
		FullName:     "Test Operator",
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}
	require.NoError(t, repo.Create(context.Background(), op))
	return op
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestLogin_Success(t *testing.T) {
	repo := newStubOperatorRepo()
	seedOperator(t, repo, "maria", "secret99", "receptionist")
	svc := NewAuthService(repo, authTestConfig())

	resp, err := svc.Login(context.Background(), dto.LoginRequest{Username: "maria", Password: "secret99"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, 8*3600, resp.ExpiresIn)
	assert.Equal(t, "maria", resp.User.Username)

	// the access token must carry the operator's identity and role
	token, err := jwt.Parse(resp.AccessToken, func(_ *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "maria", claims["username"])
	assert.Equal(t, "receptionist", claims["role"])
}

func TestLogin_WrongPassword(t *testing.T) {
	repo := newStubOperatorRepo()
	seedOperator(t, repo, "maria", "secret99", "receptionist")
	svc := NewAuthService(repo, authTestConfig())

	_, err := svc.Login(context.Background(), dto.LoginRequest{Username: "maria", Password: "nope"})
	assert.EqualError(t, err, "invalid credentials")
}

func TestLogin_DeactivatedOperator(t *testing.T) {
	repo := newStubOperatorRepo()
	op := seedOperator(t, repo, "maria", "secret99", "receptionist")
	require.NoError(t, repo.SoftDelete(context.Background(), op.ID))
	svc := NewAuthService(repo, authTestConfig())

	_, err := svc.Login(context.Background(), dto.LoginRequest{Username: "maria", Password: "secret99"})
	assert.Error(t, err)
}

func TestRefresh_IssuesNewTokens(t *testing.T) {
	repo := newStubOperatorRepo()
	seedOperator(t, repo, "maria", "secret99", "receptionist")
	svc := NewAuthService(repo, authTestConfig())

	login, err := svc.Login(context.Background(), dto.LoginRequest{Username: "maria", Password: "secret99"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), login.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Equal(t, "maria", refreshed.User.Username)
}

func TestRefresh_GarbageTokenRejected(t *testing.T) {
	svc := NewAuthService(newStubOperatorRepo(), authTestConfig())
	_, err := svc.Refresh(context.Background(), "not-a-jwt")
	assert.Error(t, err)
}

func TestCreateOperator_HashesPassword(t *testing.T) {
	repo := newStubOperatorRepo()
	svc := NewAuthService(repo, authTestConfig())

	resp, err := svc.CreateOperator(context.Background(), dto.CreateOperatorRequest{
		Username: "ana",
		FullName: "Ana Reyes",
		Password: "frontdesk1",
		Role:     "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, "admin", resp.Role)
	assert.True(t, resp.Active)

	stored, err := repo.FindByUsername(context.Background(), "ana")
	require.NoError(t, err)
	assert.NotEqual(t, "frontdesk1", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("frontdesk1")))
}

func TestDeactivateReactivateOperator(t *testing.T) {
	repo := newStubOperatorRepo()
	op := seedOperator(t, repo, "ana", "frontdesk1", "admin")
	svc := NewAuthService(repo, authTestConfig())

	require.NoError(t, svc.DeactivateOperator(context.Background(), op.ID))
	_, err := repo.FindByUsername(context.Background(), "ana")
	assert.Error(t, err)

	require.NoError(t, svc.ReactivateOperator(context.Background(), op.ID))
	_, err = repo.FindByUsername(context.Background(), "ana")
	assert.NoError(t, err)
}
