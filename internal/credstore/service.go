package credstore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/talentcove/company-switch/internal/database/models"
	"github.com/talentcove/company-switch/pkg/crypto"
	"gorm.io/gorm"
)

var ErrNoActiveCredential = errors.New("no active role store credential")

// Service manages service tokens for the role store, encrypted at rest. The
// repair worker authenticates with these because a caller's bearer token is
// gone by the time a repair runs.
type Service struct {
	db        *gorm.DB
	encryptor *crypto.Encryptor
	logger    *slog.Logger
}

func NewService(db *gorm.DB, encryptor *crypto.Encryptor, logger *slog.Logger) *Service {
	return &Service{db: db, encryptor: encryptor, logger: logger}
}

// Create encrypts and stores a new service token.
func (s *Service) Create(ctx context.Context, name, token string) (*models.StoreCredential, error) {
	encrypted, err := s.encryptor.Encrypt([]byte(token))
	if err != nil {
		return nil, err
	}

	cred := &models.StoreCredential{
		Name:           name,
		EncryptedToken: encrypted,
		IsActive:       true,
	}
	if err := s.db.WithContext(ctx).Create(cred).Error; err != nil {
		return nil, err
	}

	s.logger.Info("created store credential", "id", cred.ID, "name", name)
	return cred, nil
}

// List returns all credentials without their encrypted material.
func (s *Service) List(ctx context.Context) ([]models.StoreCredential, error) {
	var creds []models.StoreCredential
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&creds).Error; err != nil {
		return nil, err
	}

	for i := range creds {
		creds[i].EncryptedToken = nil
	}
	return creds, nil
}

// Delete removes a credential.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.StoreCredential{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ActiveToken decrypts and returns the most recently created active token.
func (s *Service) ActiveToken(ctx context.Context) (string, error) {
	var cred models.StoreCredential
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNoActiveCredential
	}
	if err != nil {
		return "", err
	}

	token, err := s.encryptor.Decrypt(cred.EncryptedToken)
	if err != nil {
		return "", err
	}

	s.db.WithContext(ctx).Model(&cred).Update("last_used", time.Now().Unix())
	return string(token), nil
}
