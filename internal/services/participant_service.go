package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rxtech-lab/pooled-funds/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrParticipantNotFound = errors.New("participant not found")
	ErrAlreadyCheckedIn    = errors.New("participant already checked in")
	ErrParticipantRefunded = errors.New("participant has been refunded")
)

// ParticipantView joins a participant with its display data.
type ParticipantView struct {
	models.Participant
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type ParticipantService interface {
	// Join upserts the participant as joined. A refunded participant that deposits again rejoins.
	Join(poolID, address string) (*models.Participant, error)
	MarkRefunded(poolID, address string) (*models.Participant, error)
	CheckIn(poolID, address string) (*models.Participant, error)
	GetParticipant(poolID, address string) (*models.Participant, error)
	ListParticipants(poolID string) ([]ParticipantView, error)
}

type participantService struct {
	db *gorm.DB
}

func NewParticipantService(db *gorm.DB) ParticipantService {
	return &participantService{db: db}
}

func (s *participantService) Join(poolID, address string) (*models.Participant, error) {
	participant := &models.Participant{
		PoolID:  poolID,
		Address: strings.ToLower(address),
		Status:  models.ParticipantStatusJoined,
	}

	// keep checked_in participants checked in if the join is reported twice
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "pool_id"}, {Name: "address"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status": gorm.Expr("CASE WHEN status = ? THEN status ELSE ? END",
				models.ParticipantStatusCheckedIn, models.ParticipantStatusJoined),
			"updated_at": time.Now(),
		}),
	}).Create(participant).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert participant: %w", err)
	}
	return s.GetParticipant(poolID, address)
}

func (s *participantService) MarkRefunded(poolID, address string) (*models.Participant, error) {
	participant, err := s.GetParticipant(poolID, address)
	if err != nil {
		return nil, err
	}
	if participant.Status == models.ParticipantStatusRefunded {
		return participant, nil
	}

	participant.Status = models.ParticipantStatusRefunded
	if err := s.db.Save(participant).Error; err != nil {
		return nil, fmt.Errorf("failed to update participant: %w", err)
	}
	return participant, nil
}

func (s *participantService) CheckIn(poolID, address string) (*models.Participant, error) {
	participant, err := s.GetParticipant(poolID, address)
	if err != nil {
		return nil, err
	}
	switch participant.Status {
	case models.ParticipantStatusCheckedIn:
		return participant, ErrAlreadyCheckedIn
	case models.ParticipantStatusRefunded:
		return nil, ErrParticipantRefunded
	}

	now := time.Now()
	participant.Status = models.ParticipantStatusCheckedIn
	participant.CheckedInAt = &now
	if err := s.db.Save(participant).Error; err != nil {
		return nil, fmt.Errorf("failed to check in participant: %w", err)
	}
	return participant, nil
}

func (s *participantService) GetParticipant(poolID, address string) (*models.Participant, error) {
	var participant models.Participant
	err := s.db.Where("pool_id = ? AND address = ?", poolID, strings.ToLower(address)).First(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrParticipantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

func (s *participantService) ListParticipants(poolID string) ([]ParticipantView, error) {
	var participants []models.Participant
	if err := s.db.Where("pool_id = ?", poolID).Order("created_at ASC").Find(&participants).Error; err != nil {
		return nil, err
	}

	addresses := make([]string, 0, len(participants))
	for _, p := range participants {
		addresses = append(addresses, p.Address)
	}
	var users []models.User
	if len(addresses) > 0 {
		if err := s.db.Where("address IN ?", addresses).Find(&users).Error; err != nil {
			return nil, err
		}
	}
	byAddress := make(map[string]models.User, len(users))
	for _, u := range users {
		byAddress[u.Address] = u
	}

	views := make([]ParticipantView, 0, len(participants))
	for _, p := range participants {
		view := ParticipantView{Participant: p}
		if u, ok := byAddress[p.Address]; ok {
			view.DisplayName = u.DisplayName
			view.AvatarURL = u.AvatarURL
		}
		views = append(views, view)
	}
	return views, nil
}
