// Package identity provisions accounts for buyers reported by the payment
// provider.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"meurenda/internal/core"
)

// PlanLifetime is granted by every approved purchase.
const PlanLifetime = "lifetime"

// DefaultProductName is used when the order carries no product name.
const DefaultProductName = "Produto Kiwify"

var ErrInvalidEmail = errors.New("invalid email")

// Repository stores paid users keyed by email.
type Repository interface {
	// UpsertPaidUser inserts u or refreshes the user with the same email.
	// Existing users keep their id, registration time and password hash.
	UpsertPaidUser(ctx context.Context, u core.PaidUser) (core.PaidUser, bool, error)
	GetPaidUserByEmail(ctx context.Context, email string) (core.PaidUser, error)
}

// Purchase is an approved order.
type Purchase struct {
	Email       string
	Name        string
	OrderID     string
	ProductName string
}

type Result struct {
	User    core.PaidUser
	Created bool
	// ProvisionalPassword is set only for new accounts.
	ProvisionalPassword string
}

type Provisioner struct {
	repo        Repository
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
	newPassword func() (string, error)
	bcryptCost  int
}

func NewProvisioner(repo Repository, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{
		repo:        repo,
		logger:      logger,
		now:         time.Now,
		newID:       uuid.NewString,
		newPassword: randomPassword,
		bcryptCost:  bcrypt.DefaultCost,
	}
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Provision grants the lifetime plan to the buyer, creating the account on
// first purchase. Repeated calls for the same email are idempotent apart from
// the payment timestamps.
func (p *Provisioner) Provision(ctx context.Context, in Purchase) (Result, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidEmail, in.Email)
	}
	product := strings.TrimSpace(in.ProductName)
	if product == "" {
		product = DefaultProductName
	}

	now := p.now().UTC()
	user := core.PaidUser{
		ID:            p.newID(),
		Email:         email,
		Name:          strings.TrimSpace(in.Name),
		Active:        true,
		Plan:          PlanLifetime,
		OrderID:       strings.TrimSpace(in.OrderID),
		ProductName:   product,
		RegisteredAt:  now,
		UpdatedAt:     now,
		LastPaymentAt: now,
	}

	var password string
	if _, err := p.repo.GetPaidUserByEmail(ctx, email); errors.Is(err, core.ErrUserNotFound) {
		password, err = p.newPassword()
		if err != nil {
			return Result{}, fmt.Errorf("generate provisional password: %w", err)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), p.bcryptCost)
		if err != nil {
			return Result{}, fmt.Errorf("hash provisional password: %w", err)
		}
		user.PasswordHash = string(hash)
	} else if err != nil {
		return Result{}, fmt.Errorf("lookup paid user: %w", err)
	}

	stored, created, err := p.repo.UpsertPaidUser(ctx, user)
	if err != nil {
		return Result{}, err
	}

	res := Result{User: stored, Created: created}
	if created {
		res.ProvisionalPassword = password
	}
	p.logger.InfoContext(ctx, "Paid user provisioned",
		"email", email, "order_id", user.OrderID, "created", created)
	return res, nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(u core.PaidUser, password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func randomPassword() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// MemoryRepository keeps paid users in memory. It is used by the memory and
// file backends.
type MemoryRepository struct {
	mu    sync.Mutex
	users map[string]core.PaidUser
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]core.PaidUser)}
}

func (r *MemoryRepository) UpsertPaidUser(_ context.Context, u core.PaidUser) (core.PaidUser, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[u.Email]
	if !ok {
		r.users[u.Email] = u
		return u, true, nil
	}

	existing.Name = u.Name
	existing.Active = u.Active
	existing.Plan = u.Plan
	existing.OrderID = u.OrderID
	existing.ProductName = u.ProductName
	existing.UpdatedAt = u.UpdatedAt
	existing.LastPaymentAt = u.LastPaymentAt
	r.users[u.Email] = existing

	existing.PasswordHash = ""
	return existing, false, nil
}

func (r *MemoryRepository) GetPaidUserByEmail(_ context.Context, email string) (core.PaidUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return core.PaidUser{}, fmt.Errorf("%w: %s", core.ErrUserNotFound, email)
	}
	return u, nil
}

func (r *MemoryRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}
