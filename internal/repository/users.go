package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/plantshop/internal/model"
)

// CreateUser создаёт нового пользователя. Время создания проставляется базой.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) error {
	return r.withRetry(ctx, func(ctx context.Context) error {
		err := r.pool.QueryRow(ctx,
			`INSERT INTO users (id, email, name, password_hash, role)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING created_at`,
			u.ID, u.Email, u.Name, u.PasswordHash, string(u.Role),
		).Scan(&u.CreatedAt)
		if err != nil {
			if pgErrorCode(err) == pgerrcode.UniqueViolation {
				return fmt.Errorf("%w: %s", ErrUserExists, u.Email)
			}
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
}

// GetUserByEmail возвращает пользователя по адресу почты.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getUser(ctx, `WHERE email = $1`, email)
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.getUser(ctx, `WHERE id = $1`, id)
}

func (r *PostgresRepository) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User
	err := r.withRetry(ctx, func(ctx context.Context) error {
		var role string
		err := r.pool.QueryRow(ctx,
			`SELECT id, email, name, password_hash, role, created_at FROM users `+where,
			arg,
		).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.CreatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("get user: %w", err)
		}
		u.Role = model.Role(role)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreatePlant добавляет позицию каталога.
func (r *PostgresRepository) CreatePlant(ctx context.Context, p *model.Plant) error {
	return r.withRetry(ctx, func(ctx context.Context) error {
		err := r.pool.QueryRow(ctx,
			`INSERT INTO plants (id, name, description) VALUES ($1, $2, $3) RETURNING created_at`,
			p.ID, p.Name, p.Description,
		).Scan(&p.CreatedAt)
		if err != nil {
			return fmt.Errorf("create plant: %w", err)
		}
		return nil
	})
}

// GetPlant возвращает позицию каталога по идентификатору.
func (r *PostgresRepository) GetPlant(ctx context.Context, id uuid.UUID) (*model.Plant, error) {
	var p model.Plant
	err := r.withRetry(ctx, func(ctx context.Context) error {
		err := r.pool.QueryRow(ctx,
			`SELECT id, name, description, created_at FROM plants WHERE id = $1`,
			id,
		).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrPlantNotFound
			}
			return fmt.Errorf("get plant: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}
