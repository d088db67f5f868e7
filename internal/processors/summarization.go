package processors

import (
	"context"

	"meetwork/internal/jobs"
)

// PlaceholderSummary is saved when the transcript is too short to summarize.
const PlaceholderSummary = "This meeting's transcript is too short to generate a summary."

type Summarization struct {
	Deps
}

func (p *Summarization) Process(ctx context.Context, job *jobs.Job, progress *jobs.Progress) (jobs.JSONMap, error) {
	m, err := p.fetch(ctx, job)
	if err != nil {
		return nil, err
	}
	if err := progress.Report(ctx, 25, "fetched meeting"); err != nil {
		return nil, err
	}

	placeholder := p.tooShort(m.Transcript)
	summary := PlaceholderSummary
	if !placeholder {
		summary, err = p.Summarizer.Summarize(ctx, m.Transcript)
		if err != nil {
			return nil, jobs.External(err, "summarization")
		}
	}
	if err := progress.Report(ctx, 75, "saving summary"); err != nil {
		return nil, err
	}

	if err := p.Meetings.SaveSummary(ctx, m.ID, summary); err != nil {
		return nil, jobs.Persistence(err, "save summary")
	}
	if err := progress.Report(ctx, 100, "done"); err != nil {
		return nil, err
	}

	return jobs.JSONMap{
		"meeting_id":     m.ID,
		"summary_length": len([]rune(summary)),
		"placeholder":    placeholder,
	}, nil
}
