package ai

import (
	"context"

	"github.com/cockroachdb/errors"

	"meetwork/internal/board"
	"meetwork/internal/meeting"
)

type meetingGetter interface {
	Get(ctx context.Context, id uint64) (*meeting.Meeting, error)
}

// CardExtractor resolves a meeting's transcript and asks the gateway for cards.
type CardExtractor struct {
	Client   *Client
	Meetings meetingGetter
}

func (e *CardExtractor) ExtractCards(ctx context.Context, meetingID uint64) ([]board.Candidate, string, error) {
	m, err := e.Meetings.Get(ctx, meetingID)
	if err != nil {
		return nil, "", errors.Wrap(err, "load transcript for card extraction")
	}
	return e.Client.Cards(ctx, meetingID, m.Transcript)
}
