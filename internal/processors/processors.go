// Package processors holds the job type handlers: transcription,
// summarization and card extraction.
package processors

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"meetwork/internal/board"
	"meetwork/internal/jobs"
	"meetwork/internal/meeting"
)

// DefaultMinTranscriptLength is the number of characters below which a
// transcript is not worth sending to a model.
const DefaultMinTranscriptLength = 100

type Meetings interface {
	Get(ctx context.Context, id uint64) (*meeting.Meeting, error)
	SaveTranscript(ctx context.Context, id uint64, rec meeting.Recording, transcript string) error
	SaveSummary(ctx context.Context, id uint64, summary string) error
}

type Downloader interface {
	Download(ctx context.Context, path string) ([]byte, error)
}

type SpeechToText interface {
	Transcribe(ctx context.Context, audio []byte, contentType string) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

type CardExtractor interface {
	ExtractCards(ctx context.Context, meetingID uint64) ([]board.Candidate, string, error)
}

type Boards interface {
	DefaultBoard(ctx context.Context, workspaceID uint64) (*board.Board, error)
	InsertCards(ctx context.Context, boardID uint64, provider string, cands []board.Candidate) ([]board.Card, error)
	MeetingSource(ctx context.Context, workspaceID, meetingID uint64, title string) (*board.Source, error)
	LinkCard(ctx context.Context, cardID, sourceID uint64) error
}

type ActivityToucher interface {
	Touch(ctx context.Context, workspaceID uint64) error
}

// Deps are the collaborators shared by the processors.
type Deps struct {
	Meetings            Meetings
	Storage             Downloader
	Speech              SpeechToText
	Summarizer          Summarizer
	Cards               CardExtractor
	Boards              Boards
	Activity            ActivityToucher
	MinTranscriptLength int
	Log                 *zap.SugaredLogger
}

// Register adds all three processors to r.
func Register(r *jobs.Registry, d Deps) {
	r.Register(jobs.TypeTranscription, &Transcription{Deps: d})
	r.Register(jobs.TypeSummarization, &Summarization{Deps: d})
	r.Register(jobs.TypeCardExtraction, &CardExtraction{Deps: d})
}

func (d Deps) minLength() int {
	if d.MinTranscriptLength <= 0 {
		return DefaultMinTranscriptLength
	}
	return d.MinTranscriptLength
}

// tooShort reports whether the transcript is below the configured threshold.
func (d Deps) tooShort(transcript string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(transcript)) < d.minLength()
}

func (d Deps) logger() *zap.SugaredLogger {
	if d.Log == nil {
		return zap.NewNop().Sugar()
	}
	return d.Log
}

func (d Deps) fetch(ctx context.Context, job *jobs.Job) (*meeting.Meeting, error) {
	m, err := d.Meetings.Get(ctx, job.TargetID)
	if err != nil {
		return nil, jobs.Fetch(err, "fetch target")
	}
	return m, nil
}
