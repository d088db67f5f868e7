package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"meetwork/internal/notify"
)

// Notifier delivers a user-addressed message.
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) error
}

// Emitter sends the completion message for a finished job. Delivery is best
// effort: errors are logged and dropped.
type Emitter struct {
	Notifier Notifier
	Log      *zap.SugaredLogger
}

// Emit builds and sends the message for job. runErr is nil on success.
func (e *Emitter) Emit(ctx context.Context, job *Job, result JSONMap, runErr error) {
	if e == nil || e.Notifier == nil {
		return
	}
	msg := BuildMessage(job, result, runErr)
	if err := e.Notifier.Notify(ctx, msg); err != nil {
		logger(e.Log).Warnw("notification failed",
			"job_id", job.ID,
			"owner_id", job.OwnerID,
			"error", err,
		)
	}
}

// BuildMessage turns a terminal outcome into the message sent to the job owner.
func BuildMessage(job *Job, result JSONMap, runErr error) notify.Message {
	msg := notify.Message{
		UserID:     job.OwnerID,
		JobID:      job.ID,
		JobType:    string(job.Type),
		TargetType: "meeting",
		TargetID:   job.TargetID,
		Success:    runErr == nil,
	}
	if runErr != nil {
		msg.Kind = notify.KindJobFailed
		msg.Message = runErr.Error()
		return msg
	}
	msg.Kind = notify.KindJobCompleted
	msg.Message = resultSummary(job.Type, result)
	return msg
}

func resultSummary(t Type, result JSONMap) string {
	switch t {
	case TypeTranscription:
		return fmt.Sprintf("Transcript ready (%d characters)", intField(result, "transcript_length"))
	case TypeSummarization:
		if b, _ := result["placeholder"].(bool); b {
			return "Transcript too short, placeholder summary saved"
		}
		return "Summary ready"
	case TypeCardExtraction:
		return fmt.Sprintf("%d cards extracted", intField(result, "card_count"))
	default:
		return "Job completed"
	}
}

func intField(m JSONMap, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
