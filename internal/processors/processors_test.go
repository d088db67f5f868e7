package processors_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"meetwork/internal/board"
	"meetwork/internal/dbtest"
	"meetwork/internal/jobs"
	"meetwork/internal/meeting"
	"meetwork/internal/processors"
)

type fakeStorage struct {
	objects map[string][]byte
	calls   int
}

func (f *fakeStorage) Download(_ context.Context, path string) ([]byte, error) {
	f.calls++
	b, ok := f.objects[path]
	if !ok {
		return nil, errors.Newf("object %s not found", path)
	}
	return b, nil
}

type fakeSpeech struct {
	text  string
	err   error
	calls int
	got   string
}

func (f *fakeSpeech) Transcribe(_ context.Context, audio []byte, contentType string) (string, error) {
	f.calls++
	f.got = contentType
	return f.text, f.err
}

type fakeSummarizer struct {
	summary string
	err     error
	calls   int
}

func (f *fakeSummarizer) Summarize(context.Context, string) (string, error) {
	f.calls++
	return f.summary, f.err
}

type fakeCards struct {
	cards []board.Candidate
	err   error
	calls int
}

func (f *fakeCards) ExtractCards(context.Context, uint64) ([]board.Candidate, string, error) {
	f.calls++
	return f.cards, "gateway", f.err
}

type fakeActivity struct {
	touched []uint64
	err     error
}

func (f *fakeActivity) Touch(_ context.Context, workspaceID uint64) error {
	f.touched = append(f.touched, workspaceID)
	return f.err
}

type fixture struct {
	db       *gorm.DB
	store    *jobs.Store
	meetings *meeting.Repo
	boards   *board.Repo
	storage  *fakeStorage
	speech   *fakeSpeech
	summary  *fakeSummarizer
	cards    *fakeCards
	activity *fakeActivity
	registry *jobs.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := dbtest.New(t)
	f := &fixture{
		db:       gdb,
		store:    jobs.NewStore(gdb),
		meetings: &meeting.Repo{DB: gdb},
		boards:   &board.Repo{DB: gdb},
		storage:  &fakeStorage{objects: map[string][]byte{}},
		speech:   &fakeSpeech{},
		summary:  &fakeSummarizer{},
		cards:    &fakeCards{},
		activity: &fakeActivity{},
		registry: jobs.NewRegistry(),
	}
	processors.Register(f.registry, processors.Deps{
		Meetings:   f.meetings,
		Storage:    f.storage,
		Speech:     f.speech,
		Summarizer: f.summary,
		Cards:      f.cards,
		Boards:     f.boards,
		Activity:   f.activity,
		Log:        zaptest.NewLogger(t).Sugar(),
	})
	return f
}

func (f *fixture) meeting(t *testing.T, transcript string) *meeting.Meeting {
	t.Helper()
	now := time.Now().UTC()
	ws := &meeting.Workspace{OwnerID: 1, Name: "Team", CreatedAt: now}
	require.NoError(t, f.db.Create(ws).Error)
	m := &meeting.Meeting{WorkspaceID: ws.ID, OwnerID: 1, Title: "Retro", Transcript: transcript, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, f.db.Create(m).Error)
	return m
}

// run inserts and claims a job, then runs its processor the way the worker does.
func (f *fixture) run(t *testing.T, typ jobs.Type, targetID uint64, md jobs.JSONMap) (*jobs.Job, jobs.JSONMap, error) {
	t.Helper()
	ctx := context.Background()
	j := &jobs.Job{Type: typ, TargetID: targetID, OwnerID: 1, Metadata: md}
	require.NoError(t, f.store.Insert(ctx, j))
	ok, err := f.store.Claim(ctx, j.ID, "test")
	require.NoError(t, err)
	require.True(t, ok)

	j, err = f.store.GetByID(ctx, j.ID)
	require.NoError(t, err)
	p, err := f.registry.Lookup(typ)
	require.NoError(t, err)

	result, runErr := p.Process(ctx, j, jobs.NewProgress(f.store, j))
	after, err := f.store.GetByID(ctx, j.ID)
	require.NoError(t, err)
	return after, result, runErr
}

func longTranscript() string {
	return strings.Repeat("We reviewed the launch plan and assigned owners. ", 5)
}

func TestTranscription(t *testing.T) {
	recording := jobs.JSONMap{
		processors.MetaFileName:    "retro.webm",
		processors.MetaContentType: "audio/webm",
		processors.MetaStoragePath: "uploads/retro.webm",
	}

	t.Run("stores transcript and recording", func(t *testing.T) {
		f := newFixture(t)
		m := f.meeting(t, "")
		f.storage.objects["uploads/retro.webm"] = []byte("audio")
		f.speech.text = "hello team"

		job, result, err := f.run(t, jobs.TypeTranscription, m.ID, recording)
		require.NoError(t, err)
		assert.Equal(t, 100, job.Progress)
		assert.Equal(t, "done", job.Metadata.String(jobs.MetaCurrentStep))
		assert.Equal(t, "audio/webm", f.speech.got)
		assert.EqualValues(t, 10, result["transcript_length"])
		assert.Equal(t, "retro.webm", result["file_name"])
		assert.Equal(t, []uint64{m.WorkspaceID}, f.activity.touched)

		got, err := f.meetings.Get(context.Background(), m.ID)
		require.NoError(t, err)
		assert.Equal(t, "hello team", got.Transcript)
		assert.Equal(t, "uploads/retro.webm", got.RecordingPath)
	})

	t.Run("missing metadata fails before any I/O", func(t *testing.T) {
		f := newFixture(t)
		m := f.meeting(t, "")
		md := recording.Clone()
		delete(md, processors.MetaStoragePath)

		job, _, err := f.run(t, jobs.TypeTranscription, m.ID, md)
		require.Error(t, err)
		assert.True(t, errors.Is(err, jobs.ErrValidation))
		assert.Contains(t, err.Error(), "storage_path")
		assert.Equal(t, 0, job.Progress)
		assert.Equal(t, 0, f.storage.calls)
		assert.Equal(t, 0, f.speech.calls)
	})

	t.Run("missing meeting is a fetch error", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.run(t, jobs.TypeTranscription, 999, recording)
		assert.True(t, errors.Is(err, jobs.ErrFetch))
		assert.True(t, errors.Is(err, meeting.ErrNotFound))
	})

	t.Run("download failure keeps progress", func(t *testing.T) {
		f := newFixture(t)
		m := f.meeting(t, "")

		job, _, err := f.run(t, jobs.TypeTranscription, m.ID, recording)
		assert.True(t, errors.Is(err, jobs.ErrExternalService))
		assert.Equal(t, 40, job.Progress)
		assert.Equal(t, 0, f.speech.calls)
	})

	t.Run("activity failure is not fatal", func(t *testing.T) {
		f := newFixture(t)
		m := f.meeting(t, "")
		f.storage.objects["uploads/retro.webm"] = []byte("audio")
		f.speech.text = "hi"
		f.activity.err = errors.New("redis down")

		_, _, err := f.run(t, jobs.TypeTranscription, m.ID, recording)
		assert.NoError(t, err)
	})
}

func TestSummarization(t *testing.T) {
	t.Run("short transcript gets the placeholder without a model call", func(t *testing.T) {
		f := newFixture(t)
		m := f.meeting(t, strings.Repeat("x", 50))

		job, result, err := f.run(t, jobs.TypeSummarization, m.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, f.summary.calls)
		assert.Equal(t, true, result["placeholder"])
		assert.Equal(t, 100, job.Progress)

		got, err := f.meetings.Get(context.Background(), m.ID)
		require.NoError(t, err)
		assert.Equal(t, processors.PlaceholderSummary, got.Summary)
	})

	t.Run("long transcript is summarized", func(t *testing.T) {
		f := newFixture(t)
		m := f.meeting(t, longTranscript())
		f.summary.summary = "Launch owners assigned."

		_, result, err := f.run(t, jobs.TypeSummarization, m.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, f.summary.calls)
		assert.Equal(t, false, result["placeholder"])

		got, err := f.meetings.Get(context.Background(), m.ID)
		require.NoError(t, err)
		assert.Equal(t, "Launch owners assigned.", got.Summary)
	})

	t.Run("model failure leaves the summary untouched", func(t *testing.T) {
		f := newFixture(t)
		m := f.meeting(t, longTranscript())
		f.summary.err = errors.New("status 500")

		job, _, err := f.run(t, jobs.TypeSummarization, m.ID, nil)
		assert.True(t, errors.Is(err, jobs.ErrExternalService))
		assert.Equal(t, 25, job.Progress)

		got, err := f.meetings.Get(context.Background(), m.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Summary)
	})
}

func TestCardExtraction(t *testing.T) {
	t.Run("every card is linked to the meeting source", func(t *testing.T) {
		f := newFixture(t)
		m := f.meeting(t, longTranscript())
		f.cards.cards = []board.Candidate{
			{Title: "Write launch post", Body: "#marketing", Kind: "task"},
			{Title: "Decide pricing"},
			{Title: "Book venue", Tags: []string{"events"}},
		}

		job, result, err := f.run(t, jobs.TypeCardExtraction, m.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, 100, job.Progress)
		assert.Equal(t, 3, result["card_count"])
		assert.Equal(t, "gateway", result["provider"])

		var cards []board.Card
		require.NoError(t, f.db.Order("position asc").Find(&cards).Error)
		require.Len(t, cards, 3)
		assert.Equal(t, board.Tags{"marketing"}, cards[0].Tags)

		for _, c := range cards {
			sources, err := f.boards.SourcesForCard(context.Background(), c.ID)
			require.NoError(t, err)
			require.Len(t, sources, 1)
			assert.Equal(t, m.ID, sources[0].MeetingID)
			assert.Equal(t, board.SourceKindMeeting, sources[0].Kind)
		}
	})

	t.Run("short transcript uses placeholder cards", func(t *testing.T) {
		f := newFixture(t)
		m := f.meeting(t, "too short")

		_, result, err := f.run(t, jobs.TypeCardExtraction, m.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, f.cards.calls)
		assert.Equal(t, processors.PlaceholderProvider, result["provider"])
		assert.Equal(t, 3, result["card_count"])
	})

	t.Run("extraction failure writes no cards", func(t *testing.T) {
		f := newFixture(t)
		m := f.meeting(t, longTranscript())
		f.cards.err = errors.New("circuit open")

		_, _, err := f.run(t, jobs.TypeCardExtraction, m.ID, nil)
		assert.True(t, errors.Is(err, jobs.ErrExternalService))

		var n int64
		require.NoError(t, f.db.Model(&board.Card{}).Count(&n).Error)
		assert.Zero(t, n)
	})
}
