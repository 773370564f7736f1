package identity

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"meurenda/internal/core"
)

func newTestProvisioner(repo Repository) (*Provisioner, *time.Time) {
	p := NewProvisioner(repo, nil)
	clock := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }
	n := 0
	p.newID = func() string {
		n++
		return fmt.Sprintf("user-%d", n)
	}
	p.newPassword = func() (string, error) { return "provisional", nil }
	p.bcryptCost = bcrypt.MinCost
	return p, &clock
}

func TestProvisionCreatesUser(t *testing.T) {
	repo := NewMemoryRepository()
	p, _ := newTestProvisioner(repo)

	res, err := p.Provision(context.Background(), Purchase{
		Email: "  Ana@Example.COM ", Name: " Ana ", OrderID: "o-1",
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "provisional", res.ProvisionalPassword)
	assert.Equal(t, "user-1", res.User.ID)
	assert.Equal(t, "ana@example.com", res.User.Email)
	assert.Equal(t, "Ana", res.User.Name)
	assert.Equal(t, PlanLifetime, res.User.Plan)
	assert.Equal(t, DefaultProductName, res.User.ProductName)
	assert.True(t, res.User.Active)

	stored, err := repo.GetPaidUserByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.True(t, CheckPassword(stored, "provisional"))
	assert.False(t, CheckPassword(stored, "wrong"))
}

func TestProvisionIsIdempotentByEmail(t *testing.T) {
	repo := NewMemoryRepository()
	p, clock := newTestProvisioner(repo)
	ctx := context.Background()

	first, err := p.Provision(ctx, Purchase{Email: "ana@example.com", Name: "Ana", OrderID: "o-1", ProductName: "Meu Renda"})
	require.NoError(t, err)

	*clock = clock.Add(24 * time.Hour)
	second, err := p.Provision(ctx, Purchase{Email: "ANA@example.com", Name: "Ana Souza", OrderID: "o-2"})
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Empty(t, second.ProvisionalPassword)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, 1, repo.Count())

	stored, err := repo.GetPaidUserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", stored.Name)
	assert.Equal(t, "o-2", stored.OrderID)
	assert.True(t, stored.RegisteredAt.Equal(first.User.RegisteredAt))
	assert.True(t, stored.LastPaymentAt.After(first.User.LastPaymentAt))
	assert.True(t, CheckPassword(stored, "provisional"), "existing password is kept")
}

func TestProvisionRejectsBadEmail(t *testing.T) {
	p, _ := newTestProvisioner(NewMemoryRepository())
	_, err := p.Provision(context.Background(), Purchase{Email: "not-an-email"})
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

type failingRepo struct{ *MemoryRepository }

func (f *failingRepo) UpsertPaidUser(context.Context, core.PaidUser) (core.PaidUser, bool, error) {
	return core.PaidUser{}, false, errors.New("database is locked")
}

func TestProvisionPropagatesRepositoryError(t *testing.T) {
	repo := &failingRepo{MemoryRepository: NewMemoryRepository()}
	p, _ := newTestProvisioner(repo)
	_, err := p.Provision(context.Background(), Purchase{Email: "ana@example.com", Name: "Ana", OrderID: "o"})
	assert.ErrorContains(t, err, "database is locked")
}
