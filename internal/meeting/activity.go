package meeting

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// DBActivity records the last activity time on the workspace row.
type DBActivity struct {
	DB *gorm.DB
}

func (a *DBActivity) Touch(ctx context.Context, workspaceID uint64) error {
	err := a.DB.WithContext(ctx).
		Model(&Workspace{}).
		Where("id = ?", workspaceID).
		Update("last_activity_at", time.Now().UTC()).Error
	if err != nil {
		return errors.Wrapf(err, "touch workspace %d", workspaceID)
	}
	return nil
}

// RedisActivity keeps the last activity time as a unix timestamp under
// workspace:<id>:last_activity.
type RedisActivity struct {
	Client *redis.Client
	TTL    time.Duration
}

func ActivityKey(workspaceID uint64) string {
	return fmt.Sprintf("workspace:%d:last_activity", workspaceID)
}

func (a *RedisActivity) Touch(ctx context.Context, workspaceID uint64) error {
	ttl := a.TTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	if err := a.Client.Set(ctx, ActivityKey(workspaceID), time.Now().Unix(), ttl).Err(); err != nil {
		return errors.Wrapf(err, "touch workspace %d", workspaceID)
	}
	return nil
}
