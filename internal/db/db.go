package db

import (
	"fmt"

	"meetwork/internal/board"
	"meetwork/internal/jobs"
	"meetwork/internal/meeting"
	"meetwork/internal/notify"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

// Models is every table this service owns, in migration order.
func Models() []any {
	return []any{
		&jobs.Job{},
		&meeting.Workspace{},
		&meeting.Meeting{},
		&board.Board{},
		&board.Card{},
		&board.Source{},
		&board.CardSource{},
		&notify.Notification{},
	}
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return err
	}

	stmts := []string{
		// scheduler scans: oldest pending, any running, stale running
		`create index if not exists idx_jobs_status_created on jobs(status, created_at);`,
		`create index if not exists idx_jobs_status_updated on jobs(status, updated_at);`,
		`create index if not exists idx_jobs_owner_created on jobs(owner_id, created_at desc);`,
		`create unique index if not exists uq_boards_default on boards(workspace_id) where is_default;`,
		`create unique index if not exists uq_sources_meeting on sources(kind, meeting_id);`,
		`create index if not exists idx_cards_board_position on cards(board_id, position);`,
		`create index if not exists idx_notifications_unread on notifications(user_id, created_at desc) where read_at is null;`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}
	return nil
}
