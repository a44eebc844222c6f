package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/domain"
)

// UserDirectory resolves participant references owned by the platform.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*domain.Participant, error)
}

type userDirectory struct {
	pool *pgxpool.Pool
}

// NewUserDirectory reads end users and active staff members from the platform tables.
func NewUserDirectory(pool *pgxpool.Pool) UserDirectory {
	return &userDirectory{pool: pool}
}

func (d *userDirectory) FindByID(ctx context.Context, id string) (*domain.Participant, error) {
	const query = `
        SELECT id, name, email, 'USER' AS role FROM users WHERE id=$1 AND status='ACTIVE'
        UNION ALL
        SELECT id, name, email, role FROM staff_members WHERE id=$1 AND active_flag
        LIMIT 1`
	var p domain.Participant
	if err := d.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.DisplayName, &p.Email, &p.Role); err != nil {
		return nil, lookupError(err)
	}
	return &p, nil
}

const directoryCachePrefix = "chat:directory:"

type cachedUserDirectory struct {
	next   UserDirectory
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedUserDirectory wraps next with a Redis read-through cache.
// Cache failures fall through to next.
func NewCachedUserDirectory(next UserDirectory, client *redis.Client, ttl time.Duration, logger *zap.Logger) UserDirectory {
	if client == nil || ttl <= 0 {
		return next
	}
	return &cachedUserDirectory{next: next, client: client, ttl: ttl, logger: logger}
}

func (d *cachedUserDirectory) FindByID(ctx context.Context, id string) (*domain.Participant, error) {
	key := directoryCachePrefix + id
	raw, err := d.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p domain.Participant
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			return &p, nil
		}
	case !errors.Is(err, redis.Nil):
		d.logger.Debug("directory cache read failed", zap.String("user_id", id), zap.Error(err))
	}

	p, err := d.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payload, jsonErr := json.Marshal(p); jsonErr == nil {
		if setErr := d.client.Set(ctx, key, payload, d.ttl).Err(); setErr != nil {
			d.logger.Debug("directory cache write failed", zap.String("user_id", id), zap.Error(setErr))
		}
	}
	return p, nil
}
