package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"famfin/internal/cache"
	"famfin/internal/core"
	"famfin/internal/session"
	"famfin/internal/store"
)

const minPasswordLength = 8

// FamilyStore is the storage surface used by FamilyService.
type FamilyStore interface {
	store.FamilyStore
	store.UserStore
	store.AccountStore
	store.CategoryStore
}

// RegisterInput creates a family together with its first admin.
type RegisterInput struct {
	Email      string
	Password   string
	Name       string
	FamilyName string
}

// MemberInput adds a user to the caller's family.
type MemberInput struct {
	Email    string
	Password string
	Name     string
	Role     core.Role
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token  string      `json:"token"`
	User   core.User   `json:"user"`
	Family core.Family `json:"family"`
}

// FamilyService handles membership, authentication and family reference data.
type FamilyService struct {
	store       FamilyStore
	issuer      *session.Issuer
	generations *cache.Generations
	bcryptCost  int
	now         func() time.Time
}

func NewFamilyService(s FamilyStore, issuer *session.Issuer, gens *cache.Generations) *FamilyService {
	return &FamilyService{
		store:       s,
		issuer:      issuer,
		generations: gens,
		bcryptCost:  bcrypt.DefaultCost,
		now:         time.Now,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("email: %w", core.ErrInsufficientInput)
	}
	return email, nil
}

func (s *FamilyService) newUser(familyID, email, password, name string, role core.Role) (core.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return core.User{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return core.User{}, fmt.Errorf("name: %w", core.ErrEmptyName)
	}
	if len(password) < minPasswordLength {
		return core.User{}, fmt.Errorf("password must have at least %d characters: %w", minPasswordLength, core.ErrInsufficientInput)
	}
	if !role.Valid() {
		return core.User{}, core.ErrInvalidRole
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}
	return core.User{
		ID:           uuid.NewString(),
		FamilyID:     familyID,
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}, nil
}

// Register creates a family and its admin, and signs the admin in.
func (s *FamilyService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	familyName := strings.TrimSpace(in.FamilyName)
	if familyName == "" {
		return AuthResult{}, fmt.Errorf("family name: %w", core.ErrEmptyName)
	}
	f := core.Family{ID: uuid.NewString(), Name: familyName, CreatedAt: s.now().UTC()}

	admin, err := s.newUser(f.ID, in.Email, in.Password, in.Name, core.RoleAdmin)
	if err != nil {
		return AuthResult{}, err
	}

	if err := s.store.CreateFamilyWithAdmin(ctx, f, admin); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return AuthResult{}, ErrEmailTaken
		}
		return AuthResult{}, fmt.Errorf("register: %w", err)
	}

	return s.signIn(ctx, admin, f)
}

// Login checks the credentials and returns a fresh session token.
func (s *FamilyService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "Login for unknown email")
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("login: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		slog.WarnContext(ctx, "Login with wrong password", "user_id", u.ID)
		return AuthResult{}, ErrInvalidCredentials
	}
	f, err := s.store.GetFamily(ctx, u.FamilyID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("login: %w", err)
	}
	return s.signIn(ctx, u, f)
}

func (s *FamilyService) signIn(ctx context.Context, u core.User, f core.Family) (AuthResult, error) {
	token, err := s.issuer.Issue(session.Session{UserID: u.ID, FamilyID: u.FamilyID, Role: u.Role})
	if err != nil {
		return AuthResult{}, err
	}
	slog.InfoContext(ctx, "User signed in", "user_id", u.ID, "family_id", u.FamilyID)
	return AuthResult{Token: token, User: u, Family: f}, nil
}

// Me returns the caller and their family.
func (s *FamilyService) Me(ctx context.Context, sess *session.Session) (core.User, core.Family, error) {
	if err := session.Check(sess); err != nil {
		return core.User{}, core.Family{}, err
	}
	f, err := s.store.GetFamily(ctx, sess.FamilyID)
	if err != nil {
		return core.User{}, core.Family{}, fmt.Errorf("get family: %w", err)
	}
	members, err := s.store.ListUsers(ctx, sess.FamilyID)
	if err != nil {
		return core.User{}, core.Family{}, fmt.Errorf("list members: %w", err)
	}
	for _, u := range members {
		if u.ID == sess.UserID {
			return u, f, nil
		}
	}
	return core.User{}, core.Family{}, fmt.Errorf("user %s: %w", sess.UserID, ErrNotFound)
}

func (s *FamilyService) ListMembers(ctx context.Context, sess *session.Session) ([]core.User, error) {
	if err := session.Check(sess); err != nil {
		return nil, err
	}
	out, err := s.store.ListUsers(ctx, sess.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return out, nil
}

// AddMember creates a user in the caller's family. Admin only.
func (s *FamilyService) AddMember(ctx context.Context, sess *session.Session, in MemberInput) (core.User, error) {
	if err := requireAdmin(ctx, s.store, sess); err != nil {
		return core.User{}, err
	}
	if in.Role == "" {
		in.Role = core.RoleMember
	}
	u, err := s.newUser(sess.FamilyID, in.Email, in.Password, in.Name, in.Role)
	if err != nil {
		return core.User{}, err
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return core.User{}, ErrEmailTaken
		}
		return core.User{}, fmt.Errorf("add member: %w", err)
	}
	return u, nil
}

// UpdateRole changes a member's role. Admin only; admins cannot demote
// themselves and the family always keeps at least one admin.
func (s *FamilyService) UpdateRole(ctx context.Context, sess *session.Session, userID string, role core.Role) error {
	if err := requireAdmin(ctx, s.store, sess); err != nil {
		return err
	}
	if !role.Valid() {
		return core.ErrInvalidRole
	}
	if userID == sess.UserID && role != core.RoleAdmin {
		return fmt.Errorf("demote self: %w", ErrForbidden)
	}
	if err := s.store.UpdateUserRole(ctx, sess.FamilyID, userID, role); err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	slog.InfoContext(ctx, "Member role changed", "user_id", userID, "role", role, "by", sess.UserID)
	return nil
}

// CreateAccount opens an account with an initial balance, which may be negative.
func (s *FamilyService) CreateAccount(ctx context.Context, sess *session.Session, name string, typ core.AccountType, initial core.Money) (core.Account, error) {
	if err := session.Check(sess); err != nil {
		return core.Account{}, err
	}
	a := core.Account{
		ID:             uuid.NewString(),
		FamilyID:       sess.FamilyID,
		Name:           strings.TrimSpace(name),
		Type:           typ,
		CurrentBalance: initial,
	}
	if err := a.Validate(); err != nil {
		return core.Account{}, fmt.Errorf("validate account: %w", err)
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

func (s *FamilyService) ListAccounts(ctx context.Context, sess *session.Session) ([]core.Account, error) {
	if err := session.Check(sess); err != nil {
		return nil, err
	}
	out, err := s.store.ListAccounts(ctx, sess.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

func (s *FamilyService) ListCategories(ctx context.Context, sess *session.Session) ([]core.Category, error) {
	if err := session.Check(sess); err != nil {
		return nil, err
	}
	out, err := s.store.ListCategories(ctx, sess.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

// CreateCategory adds an income or expense category. Admin only.
func (s *FamilyService) CreateCategory(ctx context.Context, sess *session.Session, c core.Category) (core.Category, error) {
	if err := requireAdmin(ctx, s.store, sess); err != nil {
		return core.Category{}, err
	}
	c.ID = uuid.NewString()
	c.FamilyID = sess.FamilyID
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, fmt.Errorf("validate category: %w", err)
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

// DeleteCategory removes a category. Transactions keep their reference and
// are reported under the unknown category afterwards. Admin only.
func (s *FamilyService) DeleteCategory(ctx context.Context, sess *session.Session, id string) error {
	if err := requireAdmin(ctx, s.store, sess); err != nil {
		return err
	}
	if err := s.store.DeleteCategory(ctx, sess.FamilyID, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if s.generations != nil {
		s.generations.Bump(sess.FamilyID)
	}
	return nil
}
