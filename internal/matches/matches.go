// Package matches stores scheduled matches and receives the veto results
// pushed by room actors.
package matches

import (
	"context"
	"errors"
	"time"

	"github.com/ascendancy-esports/tournament-backend/internal/engine"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("match not found")
var ErrBadStatus = errors.New("invalid match status")
var ErrUnknownMatchTeam = errors.New("team does not play in this match")

const (
	StatusYetToStart = "yet to start"
	StatusOngoing    = "ongoing"
	StatusCompleted  = "completed"
)

type MatchTeam struct {
	TeamID          string `json:"id"`
	TeamName        string `json:"name"`
	TeamLogo        string `json:"logo"`
	CaptainID       string `json:"captainId"`
	CaptainUsername string `json:"captainUsername"`
}

type Match struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	MatchID     string    `gorm:"uniqueIndex;not null" json:"matchId"`
	Team1       MatchTeam `gorm:"embedded;embeddedPrefix:team1_" json:"team1"`
	Team2       MatchTeam `gorm:"embedded;embeddedPrefix:team2_" json:"team2"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Round       int       `json:"round"`
	Status      string    `gorm:"default:yet to start" json:"status"`
	SelectedMap string    `json:"selectedMap,omitempty"`
	Team1Side   string    `json:"team1Side,omitempty"`
	Team2Side   string    `json:"team2Side,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, m Match) (Match, error) {
	m.MatchID = uuid.NewString()
	if m.Status == "" {
		m.Status = StatusYetToStart
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return Match{}, err
	}
	return m, nil
}

func (s *Store) List(ctx context.Context) ([]Match, error) {
	var out []Match
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetByMatchID(ctx context.Context, matchID string) (Match, error) {
	var m Match
	err := s.db.WithContext(ctx).Where("match_id = ?", matchID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Match{}, ErrNotFound
	}
	if err != nil {
		return Match{}, err
	}
	return m, nil
}

func (s *Store) UpdateStatus(ctx context.Context, matchID, status string) error {
	switch status {
	case StatusYetToStart, StatusOngoing, StatusCompleted:
	default:
		return ErrBadStatus
	}
	res := s.db.WithContext(ctx).Model(&Match{}).
		Where("match_id = ?", matchID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordMapSelection implements room.MatchUpdater: the veto settled, so the
// match moves to ongoing with the selected map persisted.
func (s *Store) RecordMapSelection(ctx context.Context, matchID, mapID string) error {
	res := s.db.WithContext(ctx).Model(&Match{}).
		Where("match_id = ?", matchID).
		Updates(map[string]any{"selected_map": mapID, "status": StatusOngoing})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordSideSelection persists the chooser's side and the complement for the
// opposing team.
func (s *Store) RecordSideSelection(ctx context.Context, matchID, teamID string, side engine.Side) error {
	m, err := s.GetByMatchID(ctx, matchID)
	if err != nil {
		return err
	}

	updates := map[string]any{}
	switch teamID {
	case m.Team1.TeamID:
		updates["team1_side"] = string(side)
		updates["team2_side"] = string(engine.Opposite(side))
	case m.Team2.TeamID:
		updates["team2_side"] = string(side)
		updates["team1_side"] = string(engine.Opposite(side))
	default:
		return ErrUnknownMatchTeam
	}

	return s.db.WithContext(ctx).Model(&Match{}).
		Where("match_id = ?", matchID).
		Updates(updates).Error
}
