package processors

import (
	"context"
	"strings"

	"meetwork/internal/jobs"
	"meetwork/internal/meeting"
)

// Metadata keys a transcription job must carry.
const (
	MetaFileName    = "file_name"
	MetaContentType = "content_type"
	MetaStoragePath = "storage_path"
)

type Transcription struct {
	Deps
}

func recordingFrom(md jobs.JSONMap) (meeting.Recording, error) {
	rec := meeting.Recording{
		Name:        strings.TrimSpace(md.String(MetaFileName)),
		ContentType: strings.TrimSpace(md.String(MetaContentType)),
		Path:        strings.TrimSpace(md.String(MetaStoragePath)),
	}
	var missing []string
	if rec.Name == "" {
		missing = append(missing, MetaFileName)
	}
	if rec.ContentType == "" {
		missing = append(missing, MetaContentType)
	}
	if rec.Path == "" {
		missing = append(missing, MetaStoragePath)
	}
	if len(missing) > 0 {
		return rec, jobs.Validation("missing required metadata: %s", strings.Join(missing, ", "))
	}
	return rec, nil
}

func (p *Transcription) Process(ctx context.Context, job *jobs.Job, progress *jobs.Progress) (jobs.JSONMap, error) {
	rec, err := recordingFrom(job.Metadata)
	if err != nil {
		return nil, err
	}

	m, err := p.fetch(ctx, job)
	if err != nil {
		return nil, err
	}
	if err := progress.Report(ctx, 25, "fetched meeting"); err != nil {
		return nil, err
	}

	if err := progress.Report(ctx, 40, "downloading recording"); err != nil {
		return nil, err
	}
	audio, err := p.Storage.Download(ctx, rec.Path)
	if err != nil {
		return nil, jobs.External(err, "download recording")
	}
	if err := progress.Report(ctx, 60, "transcribing"); err != nil {
		return nil, err
	}

	transcript, err := p.Speech.Transcribe(ctx, audio, rec.ContentType)
	if err != nil {
		return nil, jobs.External(err, "speech to text")
	}
	if err := progress.Report(ctx, 75, "saving transcript"); err != nil {
		return nil, err
	}

	if err := p.Meetings.SaveTranscript(ctx, m.ID, rec, transcript); err != nil {
		return nil, jobs.Persistence(err, "save transcript")
	}

	if p.Activity != nil {
		if err := p.Activity.Touch(ctx, m.WorkspaceID); err != nil {
			p.logger().Warnw("workspace activity touch failed", "workspace_id", m.WorkspaceID, "job_id", job.ID, "error", err)
		}
	}

	if err := progress.Report(ctx, 100, "done"); err != nil {
		return nil, err
	}
	return jobs.JSONMap{
		"meeting_id":        m.ID,
		"workspace_id":      m.WorkspaceID,
		"file_name":         rec.Name,
		"transcript_length": len([]rune(transcript)),
	}, nil
}
