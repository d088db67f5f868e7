package processors

import (
	"context"

	"meetwork/internal/board"
	"meetwork/internal/jobs"
)

const PlaceholderProvider = "placeholder"

// placeholderCards are created when the transcript is too short to extract from.
func placeholderCards(title string) []board.Candidate {
	if title == "" {
		title = "this meeting"
	}
	return []board.Candidate{
		{Title: "Review notes from " + title, Body: "The transcript was too short for automatic extraction. #followup", Kind: "task"},
		{Title: "Add agenda and decisions", Body: "Capture the key decisions made in " + title + ". #decisions", Kind: "note"},
		{Title: "Record a longer session", Body: "Longer recordings produce better cards. #tips", Kind: "note"},
	}
}

type CardExtraction struct {
	Deps
}

type cardResult struct {
	ID       uint64   `json:"id"`
	Title    string   `json:"title"`
	Kind     string   `json:"kind"`
	Tags     []string `json:"tags"`
	Position int      `json:"position"`
}

func (p *CardExtraction) Process(ctx context.Context, job *jobs.Job, progress *jobs.Progress) (jobs.JSONMap, error) {
	m, err := p.fetch(ctx, job)
	if err != nil {
		return nil, err
	}
	if err := progress.Report(ctx, 25, "fetched meeting"); err != nil {
		return nil, err
	}

	var (
		cands    []board.Candidate
		provider string
	)
	if p.tooShort(m.Transcript) {
		cands, provider = placeholderCards(m.Title), PlaceholderProvider
	} else {
		cands, provider, err = p.Cards.ExtractCards(ctx, m.ID)
		if err != nil {
			return nil, jobs.External(err, "card extraction")
		}
	}
	if err := progress.Report(ctx, 50, "extracted cards"); err != nil {
		return nil, err
	}

	b, err := p.Boards.DefaultBoard(ctx, m.WorkspaceID)
	if err != nil {
		return nil, jobs.Persistence(err, "resolve board")
	}
	cards, err := p.Boards.InsertCards(ctx, b.ID, provider, cands)
	if err != nil {
		return nil, jobs.Persistence(err, "save cards")
	}
	if err := progress.Report(ctx, 75, "linking cards"); err != nil {
		return nil, err
	}

	src, err := p.Boards.MeetingSource(ctx, m.WorkspaceID, m.ID, m.Title)
	if err != nil {
		return nil, jobs.Persistence(err, "resolve source")
	}
	out := make([]cardResult, 0, len(cards))
	for _, c := range cards {
		if err := p.Boards.LinkCard(ctx, c.ID, src.ID); err != nil {
			return nil, jobs.Persistence(err, "link card")
		}
		out = append(out, cardResult{ID: c.ID, Title: c.Title, Kind: c.Kind, Tags: []string(c.Tags), Position: c.Position})
	}
	if err := progress.Report(ctx, 100, "done"); err != nil {
		return nil, err
	}

	return jobs.JSONMap{
		"meeting_id":   m.ID,
		"board_id":     b.ID,
		"source_id":    src.ID,
		"provider":     provider,
		"card_count":   len(out),
		"linked_count": len(out),
		"cards":        out,
	}, nil
}
