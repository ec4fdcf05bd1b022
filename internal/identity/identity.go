// Package identity stores tournament users and resolves captain identities
// for the room registry.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/ascendancy-esports/tournament-backend/internal/registry"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("user not found")

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    string    `gorm:"uniqueIndex;not null" json:"userId"`
	Username  string    `gorm:"not null" json:"username"`
	Email     string    `gorm:"uniqueIndex" json:"email"`
	Role      string    `gorm:"default:user" json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create is idempotent on userId: creating an existing user returns the
// stored record unchanged.
func (s *Store) Create(ctx context.Context, u User) (User, error) {
	var existing User
	err := s.db.WithContext(ctx).Where("user_id = ?", u.UserID).First(&existing).Error
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, err
	}

	if u.Role == "" {
		u.Role = RoleUser
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Store) GetByUserID(ctx context.Context, userID string) (User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Store) List(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Resolve implements registry.IdentityResolver.
func (s *Store) Resolve(ctx context.Context, userID string) (registry.Captain, error) {
	u, err := s.GetByUserID(ctx, userID)
	if err != nil {
		return registry.Captain{}, err
	}
	return registry.Captain{ID: u.UserID, Username: u.Username, Email: u.Email}, nil
}
