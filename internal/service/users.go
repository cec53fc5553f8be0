package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"

	"github.com/google/uuid"

	"github.com/mmeshcher/plantshop/internal/model"
	"github.com/mmeshcher/plantshop/internal/repository"
	"github.com/mmeshcher/plantshop/internal/validation"
)

// RegisterUser регистрирует нового пользователя. Почта из списка администраторов
// получает роль ADMIN, остальные получают BUYER.
func (s *Service) RegisterUser(ctx context.Context, email, name, password string) (*model.User, error) {
	email = normalizeEmail(email)
	if !validation.IsValidEmail(email) {
		return nil, validation.Errorf("invalid email")
	}
	if validation.IsBlank(name) || password == "" {
		return nil, validation.Errorf("name and password are required")
	}

	role := model.RoleBuyer
	if _, ok := s.admins[email]; ok {
		role = model.RoleAdmin
	}

	u := &model.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: hashPassword(email, password),
		Role:         role,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// AuthenticateUser проверяет почту и пароль пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if subtle.ConstantTimeCompare(hashPassword(email, password), u.PasswordHash) != 1 {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// GetUser возвращает пользователя по идентификатору.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}
