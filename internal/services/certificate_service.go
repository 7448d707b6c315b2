// internal/services/certificate_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/devmarket/devmarket-backend/internal/apperrors"
	"github.com/devmarket/devmarket-backend/internal/models"
	"github.com/devmarket/devmarket-backend/internal/utils"
)

const certificateCodeAttempts = 3

// CertificateService issues the verifiable proof of sale, exactly once per
// settled Transaction.
type CertificateService struct {
	db *gorm.DB
}

func NewCertificateService(db *gorm.DB) *CertificateService {
	return &CertificateService{db: db}
}

// Issue creates the certificate inside the caller's transaction so it commits
// or rolls back together with the ledger row. A code collision regenerates
// with a fresh code, bounded to a few attempts.
func (s *CertificateService) Issue(tx *gorm.DB, transaction *models.Transaction) (*models.Certificate, error) {
	var code string
	for attempt := 0; attempt < certificateCodeAttempts; attempt++ {
		candidate, err := utils.GenerateVerificationCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate verification code: %w", err)
		}

		var count int64
		if err := tx.Model(&models.Certificate{}).
			Where("verification_code = ?", candidate).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check verification code: %w", err)
		}
		if count == 0 {
			code = candidate
			break
		}
	}
	if code == "" {
		return nil, fmt.Errorf("exhausted %d verification code attempts", certificateCodeAttempts)
	}

	certificate := &models.Certificate{
		TransactionID:    transaction.ID,
		RequestID:        transaction.RequestID,
		SellerID:         transaction.SellerID,
		BuyerID:          transaction.BuyerID,
		SaleAmount:       transaction.AmountTotal,
		VerificationCode: code,
		IssuedAt:         time.Now(),
	}

	if err := tx.Create(certificate).Error; err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	return certificate, nil
}

// Verify is the public, unauthenticated lookup. An unknown code is a plain
// not-found; nothing about other certificates is revealed. Each successful
// lookup stamps last_verified_at best-effort.
func (s *CertificateService) Verify(code string) (*models.Certificate, error) {
	if code == "" {
		return nil, apperrors.NewNotFound("certificate")
	}

	var certificate models.Certificate
	err := s.db.Where("verification_code = ?", code).First(&certificate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("certificate")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	now := time.Now()
	if err := s.db.Model(&certificate).UpdateColumn("last_verified_at", now).Error; err != nil {
		// Best-effort stamp; the lookup result is still valid.
		logrus.WithError(err).Warn("Failed to stamp certificate verification time")
	} else {
		certificate.LastVerifiedAt = &now
	}

	return &certificate, nil
}
