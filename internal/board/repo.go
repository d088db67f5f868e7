package board

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultBoardName = "Meeting cards"

type Repo struct {
	DB *gorm.DB
}

// DefaultBoard returns the workspace's default board, creating it if missing.
func (r *Repo) DefaultBoard(ctx context.Context, workspaceID uint64) (*Board, error) {
	var b Board
	err := r.DB.WithContext(ctx).
		Where("workspace_id = ? AND is_default = ?", workspaceID, true).
		Order("id asc").
		First(&b).Error
	if err == nil {
		return &b, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(err, "find default board for workspace %d", workspaceID)
	}

	b = Board{
		WorkspaceID: workspaceID,
		Name:        DefaultBoardName,
		IsDefault:   true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.DB.WithContext(ctx).Create(&b).Error; err != nil {
		return nil, errors.Wrapf(err, "create default board for workspace %d", workspaceID)
	}
	return &b, nil
}

// InsertCards appends candidates to the board after its existing cards.
func (r *Repo) InsertCards(ctx context.Context, boardID uint64, provider string, cands []Candidate) ([]Card, error) {
	if len(cands) == 0 {
		return []Card{}, nil
	}

	var maxPos int
	if err := r.DB.WithContext(ctx).Model(&Card{}).
		Where("board_id = ?", boardID).
		Select("coalesce(max(position), 0)").
		Scan(&maxPos).Error; err != nil {
		return nil, errors.Wrapf(err, "read card positions for board %d", boardID)
	}

	now := time.Now().UTC()
	cards := make([]Card, 0, len(cands))
	for i, c := range cands {
		kind := c.Kind
		if kind == "" {
			kind = "note"
		}
		cards = append(cards, Card{
			BoardID:   boardID,
			Title:     c.Title,
			Body:      c.Body,
			Kind:      kind,
			Tags:      Tags(MergeTags(c.Tags, c.Title+" "+c.Body)),
			Provider:  provider,
			Position:  maxPos + i + 1,
			CreatedAt: now,
		})
	}
	if err := r.DB.WithContext(ctx).Create(&cards).Error; err != nil {
		return nil, errors.Wrapf(err, "insert %d cards", len(cards))
	}
	return cards, nil
}

// MeetingSource returns the provenance record for a meeting, creating it if missing.
func (r *Repo) MeetingSource(ctx context.Context, workspaceID, meetingID uint64, title string) (*Source, error) {
	var s Source
	err := r.DB.WithContext(ctx).
		Where("kind = ? AND meeting_id = ?", SourceKindMeeting, meetingID).
		Order("id asc").
		First(&s).Error
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(err, "find source for meeting %d", meetingID)
	}

	s = Source{
		WorkspaceID: workspaceID,
		Kind:        SourceKindMeeting,
		MeetingID:   meetingID,
		Title:       title,
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.DB.WithContext(ctx).Create(&s).Error; err != nil {
		return nil, errors.Wrapf(err, "create source for meeting %d", meetingID)
	}
	return &s, nil
}

// LinkCard attaches a card to a source. Linking twice is a no-op.
func (r *Repo) LinkCard(ctx context.Context, cardID, sourceID uint64) error {
	link := CardSource{CardID: cardID, SourceID: sourceID}
	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
	if err != nil {
		return errors.Wrapf(err, "link card %d to source %d", cardID, sourceID)
	}
	return nil
}

// SourcesForCard lists the provenance sources linked to a card.
func (r *Repo) SourcesForCard(ctx context.Context, cardID uint64) ([]Source, error) {
	var out []Source
	err := r.DB.WithContext(ctx).
		Joins("JOIN card_sources ON card_sources.source_id = sources.id").
		Where("card_sources.card_id = ?", cardID).
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list sources for card %d", cardID)
	}
	return out, nil
}
