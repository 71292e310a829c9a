package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/pooled-funds/internal/models"
	"github.com/rxtech-lab/pooled-funds/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNonceNotFound    = errors.New("no valid login nonce for address")
	ErrInvalidSignature = errors.New("signature does not match address")
)

type NonceChallenge struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type LoginResult struct {
	Token   string `json:"token"`
	Address string `json:"address"`
	IsAdmin bool   `json:"isAdmin"`
}

type AuthService interface {
	CreateNonce(address string) (*NonceChallenge, error)
	// Login consumes the latest nonce for address and returns a session token
	Login(address, signature string) (*LoginResult, error)
	ValidateToken(token string) (*utils.AuthenticatedUser, error)
	IsAdmin(address string) bool
}

type authService struct {
	db            *gorm.DB
	authenticator *utils.JwtAuthenticator
	admins        map[string]bool
	nonceTTL      time.Duration
}

func NewAuthService(db *gorm.DB, authenticator *utils.JwtAuthenticator, adminAddresses []string, nonceTTL time.Duration) AuthService {
	admins := make(map[string]bool, len(adminAddresses))
	for _, a := range adminAddresses {
		admins[strings.ToLower(a)] = true
	}
	if nonceTTL <= 0 {
		nonceTTL = 10 * time.Minute
	}
	return &authService{db: db, authenticator: authenticator, admins: admins, nonceTTL: nonceTTL}
}

func (s *authService) CreateNonce(address string) (*NonceChallenge, error) {
	if !utils.IsValidEthereumAddress(address) {
		return nil, fmt.Errorf("invalid address: %s", address)
	}

	nonce := &models.LoginNonce{
		Address:   strings.ToLower(address),
		Nonce:     uuid.New().String(),
		ExpiresAt: time.Now().Add(s.nonceTTL),
	}
	if err := s.db.Create(nonce).Error; err != nil {
		return nil, fmt.Errorf("failed to store nonce: %w", err)
	}

	return &NonceChallenge{
		Nonce:     nonce.Nonce,
		Message:   utils.GenerateLoginMessage(nonce.Address, nonce.Nonce),
		ExpiresAt: nonce.ExpiresAt,
	}, nil
}

func (s *authService) Login(address, signature string) (*LoginResult, error) {
	if !utils.IsValidEthereumAddress(address) {
		return nil, fmt.Errorf("invalid address: %s", address)
	}
	address = strings.ToLower(address)

	var nonce models.LoginNonce
	err := s.db.
		Where("address = ? AND used = ? AND expires_at > ?", address, false, time.Now()).
		Order("created_at DESC").
		First(&nonce).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNonceNotFound
	}
	if err != nil {
		return nil, err
	}

	ok, err := utils.VerifyPersonalSignature(utils.GenerateLoginMessage(address, nonce.Nonce), signature, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !ok {
		return nil, ErrInvalidSignature
	}

	// single use, even if the token cannot be issued
	result := s.db.Model(&models.LoginNonce{}).Where("id = ? AND used = ?", nonce.ID, false).Update("used", true)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to consume nonce: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNonceNotFound
	}

	isAdmin := s.IsAdmin(address)
	token, err := s.authenticator.IssueToken(address, isAdmin)
	if err != nil {
		return nil, err
	}

	user := &models.User{Address: address}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true, Columns: []clause.Column{{Name: "address"}}}).Create(user).Error; err != nil {
		log.Printf("[Auth] failed to upsert user %s: %v", address, err)
	}

	return &LoginResult{Token: token, Address: address, IsAdmin: isAdmin}, nil
}

func (s *authService) ValidateToken(token string) (*utils.AuthenticatedUser, error) {
	user, err := s.authenticator.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	// admin rights follow the current list, not the one at issue time
	user.IsAdmin = s.IsAdmin(user.Address)
	return user, nil
}

func (s *authService) IsAdmin(address string) bool {
	return s.admins[strings.ToLower(address)]
}
