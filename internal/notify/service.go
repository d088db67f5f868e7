package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/nats-io/nats.go"
	"gorm.io/gorm"
)

// DBNotifier stores messages in the notifications table.
type DBNotifier struct {
	DB *gorm.DB
}

func (n *DBNotifier) Notify(ctx context.Context, msg Message) error {
	row := Notification{
		UserID:     msg.UserID,
		Kind:       string(msg.Kind),
		JobID:      msg.JobID,
		JobType:    msg.JobType,
		Success:    msg.Success,
		Message:    msg.Message,
		TargetType: msg.TargetType,
		TargetID:   msg.TargetID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := n.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return errors.Wrap(err, "insert notification")
	}
	return nil
}

// Unread lists a user's unread notifications, newest first.
func (n *DBNotifier) Unread(ctx context.Context, userID uint64, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Notification
	err := n.DB.WithContext(ctx).
		Where("user_id = ? AND read_at IS NULL", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}
	return out, nil
}

// NATSPublisher publishes messages as JSON on <prefix>.user.<id>.
type NATSPublisher struct {
	Conn   *nats.Conn
	Prefix string
}

func (p *NATSPublisher) Subject(userID uint64) string {
	prefix := p.Prefix
	if prefix == "" {
		prefix = "meetwork.notifications"
	}
	return fmt.Sprintf("%s.user.%d", prefix, userID)
}

func (p *NATSPublisher) Notify(_ context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal notification")
	}
	if err := p.Conn.Publish(p.Subject(msg.UserID), data); err != nil {
		return errors.Wrap(err, "publish notification")
	}
	return nil
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Fanout delivers to every notifier and combines their errors.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, msg Message) error {
	var combined error
	for _, n := range f {
		if n == nil {
			continue
		}
		combined = errors.CombineErrors(combined, n.Notify(ctx, msg))
	}
	return combined
}
