// internal/services/auth_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmarket/devmarket-backend/internal/apperrors"
	"github.com/devmarket/devmarket-backend/internal/utils"
)

func TestRegisterAndLogin(t *testing.T) {
	db := setupTestDB(t)
	service := NewAuthService(db, testConfig())
	utils.SetJWTSecret("test-secret")

	registered, err := service.Register(&RegisterRequest{
		Username: "newdev",
		Email:    "newdev@example.com",
		Password: "TestPass123!",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, registered.Token)
	assert.NotEqual(t, "TestPass123!", registered.User.PasswordHash)

	loggedIn, err := service.Login(&LoginRequest{
		Email:    "newdev@example.com",
		Password: "TestPass123!",
	})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, loggedIn.User.ID)

	claims, err := utils.ValidateJWT(loggedIn.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID.String(), claims.UserID)
}

func TestRegisterDuplicate(t *testing.T) {
	db := setupTestDB(t)
	service := NewAuthService(db, testConfig())

	_, err := service.Register(&RegisterRequest{
		Username: "taken",
		Email:    "taken@example.com",
		Password: "TestPass123!",
	})
	require.NoError(t, err)

	_, err = service.Register(&RegisterRequest{
		Username: "taken",
		Email:    "other@example.com",
		Password: "TestPass123!",
	})
	assert.True(t, apperrors.IsConflict(err))
}

func TestLoginWrongPassword(t *testing.T) {
	db := setupTestDB(t)
	service := NewAuthService(db, testConfig())

	_, err := service.Register(&RegisterRequest{
		Username: "someone",
		Email:    "someone@example.com",
		Password: "TestPass123!",
	})
	require.NoError(t, err)

	_, err = service.Login(&LoginRequest{
		Email:    "someone@example.com",
		Password: "WrongPass123!",
	})
	assert.True(t, apperrors.IsValidation(err))

	// Unknown email reads the same as a wrong password.
	_, err = service.Login(&LoginRequest{
		Email:    "nobody@example.com",
		Password: "TestPass123!",
	})
	assert.True(t, apperrors.IsValidation(err))
}
