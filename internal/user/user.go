// Package user verifies credentials and answers directory queries.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zulandar/taskdesk/internal/auth"
	"github.com/zulandar/taskdesk/internal/db"
	"github.com/zulandar/taskdesk/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no user matches.
	ErrNotFound = fmt.Errorf("user %w", db.ErrNotFound)
	// ErrInvalidCredentials covers both unknown users and wrong passwords.
	ErrInvalidCredentials = errors.New("user: invalid credentials")
	// ErrUsernameTaken is returned by Create for a duplicate username.
	ErrUsernameTaken = fmt.Errorf("user: username %w", db.ErrConflict)
	// ErrLastAdmin is returned when a delete would leave no admin.
	ErrLastAdmin = errors.New("user: cannot delete the last admin")
	// ErrNoAdmin is returned by Seed when no admin exists afterwards.
	ErrNoAdmin = errors.New("user: no admin account exists")
)

// Store is the user directory.
type Store struct {
	db     *gorm.DB
	hasher auth.Hasher

	dummyOnce sync.Once
	dummy     string
}

// NewStore returns a user store that hashes with h.
func NewStore(gdb *gorm.DB, h auth.Hasher) *Store {
	return &Store{db: gdb, hasher: h}
}

// CreateInput describes a new account.
type CreateInput struct {
	Username string
	Password string
	Role     models.Role
	Name     string
	Email    string
}

func (in *CreateInput) normalize() error {
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" {
		return errors.New("user: username is required")
	}
	if in.Password == "" {
		return errors.New("user: password is required")
	}
	if in.Role == "" {
		in.Role = models.RoleWorker
	}
	if !in.Role.Valid() {
		return fmt.Errorf("user: invalid role %q", in.Role)
	}
	if in.Name == "" {
		in.Name = in.Username
	}
	return nil
}

// Create hashes the password and inserts the user.
func (s *Store) Create(ctx context.Context, in CreateInput) (*models.User, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("user: create %s: %w", in.Username, err)
	}
	u := models.User{
		Username:     in.Username,
		PasswordHash: hash,
		Role:         in.Role,
		Name:         in.Name,
	}
	if in.Email != "" {
		u.Email = &in.Email
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		if db.IsConflict(err) {
			return nil, fmt.Errorf("%w: %s", ErrUsernameTaken, in.Username)
		}
		return nil, fmt.Errorf("user: create %s: %w", in.Username, err)
	}
	return &u, nil
}

// Verify returns the user when password matches. Unknown usernames and wrong
// passwords both yield ErrInvalidCredentials after a hash comparison.
func (s *Store) Verify(ctx context.Context, username, password string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_ = s.hasher.Compare(s.dummyHash(), password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("user: verify: %w", err)
	}
	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("user: verify: %w", err)
	}
	return &u, nil
}

func (s *Store) dummyHash() string {
	s.dummyOnce.Do(func() {
		s.dummy, _ = s.hasher.Hash("taskdesk-unknown-user")
	})
	return s.dummy
}

func (s *Store) take(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where(query, arg).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user: lookup: %w", err)
	}
	return &u, nil
}

// ByID returns the user with id.
func (s *Store) ByID(ctx context.Context, id uint) (*models.User, error) {
	return s.take(ctx, "id = ?", id)
}

// ByUsername returns the user with the given login.
func (s *Store) ByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.take(ctx, "username = ?", username)
}

// ByName returns the first user with the given display name.
func (s *Store) ByName(ctx context.Context, name string) (*models.User, error) {
	return s.take(ctx, "name = ?", name)
}

// NameExists reports whether any user has the display name.
func (s *Store) NameExists(ctx context.Context, name string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("name = ?", name).Count(&n).Error; err != nil {
		return false, fmt.Errorf("user: name exists: %w", err)
	}
	return n > 0, nil
}

// ListAssignable returns every user ordered by display name, ignoring case.
func (s *Store) ListAssignable(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("LOWER(name) ASC, id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user: list assignable: %w", err)
	}
	return users, nil
}

// List returns every user in creation order.
func (s *Store) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user: list: %w", err)
	}
	return users, nil
}

// AllEmails returns the distinct non-empty e-mail addresses.
func (s *Store) AllEmails(ctx context.Context) ([]string, error) {
	var raw []string
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email IS NOT NULL AND email <> ''").
		Order("id ASC").
		Pluck("email", &raw).Error
	if err != nil {
		return nil, fmt.Errorf("user: all emails: %w", err)
	}
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		key := strings.ToLower(strings.TrimSpace(e))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(e))
	}
	return out, nil
}

// AdminEmail returns the e-mail of the first admin that has one, or "".
func (s *Store) AdminEmail(ctx context.Context) (string, error) {
	var emails []string
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("role = ? AND email IS NOT NULL AND email <> ''", models.RoleAdmin).
		Order("id ASC").Limit(1).
		Pluck("email", &emails).Error
	if err != nil {
		return "", fmt.Errorf("user: admin email: %w", err)
	}
	if len(emails) == 0 {
		return "", nil
	}
	return emails[0], nil
}

// Delete removes the user with id unless it is the last admin.
func (s *Store) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		err := tx.Take(&u, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("user: delete %d: %w", id, err)
		}
		if u.IsAdmin() {
			n, err := countAdmins(tx)
			if err != nil {
				return err
			}
			if n <= 1 {
				return ErrLastAdmin
			}
		}
		if err := tx.Delete(&models.User{}, id).Error; err != nil {
			return fmt.Errorf("user: delete %d: %w", id, err)
		}
		return nil
	})
}

func countAdmins(tx *gorm.DB) (int64, error) {
	var n int64
	if err := tx.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("user: count admins: %w", err)
	}
	return n, nil
}

// Seed creates the users whose usernames do not exist yet and returns the
// ones it created. It fails with ErrNoAdmin when no admin exists afterwards.
func (s *Store) Seed(ctx context.Context, inputs []CreateInput) ([]models.User, error) {
	var created []models.User
	for _, in := range inputs {
		_, err := s.ByUsername(ctx, strings.TrimSpace(in.Username))
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return created, err
		}
		u, err := s.Create(ctx, in)
		if err != nil {
			return created, fmt.Errorf("user: seed: %w", err)
		}
		created = append(created, *u)
	}
	n, err := countAdmins(s.db.WithContext(ctx))
	if err != nil {
		return created, err
	}
	if n == 0 {
		return created, ErrNoAdmin
	}
	return created, nil
}
