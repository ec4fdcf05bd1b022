// Package teams stores registered teams and their rosters.
package teams

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("team not found")
var ErrDuplicateName = errors.New("team name already exists")

const (
	RoleCaptain    = "Captain"
	RoleMain       = "Main"
	RoleSubstitute = "Substitute"
)

type Member struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	TeamID     uint   `gorm:"index" json:"-"`
	Name       string `json:"name"`
	ValorantID string `json:"valorantId"`
	Rank       string `json:"rank"`
	DiscordID  string `json:"discordId"`
	Role       string `gorm:"not null" json:"role"`
	UserID     string `json:"userId,omitempty"`
}

type Team struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TeamName      string    `gorm:"uniqueIndex;not null" json:"teamName"`
	TeamLogo      string    `json:"teamLogo,omitempty"`
	Members       []Member  `gorm:"constraint:OnDelete:CASCADE" json:"members"`
	OwnerID       string    `gorm:"index;not null" json:"userId"`
	OwnerUsername string    `gorm:"not null" json:"username"`
	Verified      bool      `json:"verified"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, t Team) (Team, error) {
	err := s.db.WithContext(ctx).Create(&t).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return Team{}, ErrDuplicateName
	}
	if err != nil {
		return Team{}, err
	}
	return t, nil
}

func (s *Store) List(ctx context.Context) ([]Team, error) {
	var teams []Team
	if err := s.db.WithContext(ctx).Preload("Members").Find(&teams).Error; err != nil {
		return nil, err
	}
	return teams, nil
}

func (s *Store) GetByID(ctx context.Context, id uint) (Team, error) {
	var t Team
	err := s.db.WithContext(ctx).Preload("Members").First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Team{}, ErrNotFound
	}
	if err != nil {
		return Team{}, err
	}
	return t, nil
}

func (s *Store) GetByOwner(ctx context.Context, ownerID string) (Team, error) {
	var t Team
	err := s.db.WithContext(ctx).Preload("Members").Where("owner_id = ?", ownerID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Team{}, ErrNotFound
	}
	if err != nil {
		return Team{}, err
	}
	return t, nil
}

func (s *Store) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Select("Members").Delete(&Team{ID: id})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
