package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"meetwork/internal/auth"
	"meetwork/internal/jobs"
	"meetwork/internal/meeting"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type meetingGetter interface {
	Get(ctx context.Context, id uint64) (*meeting.Meeting, error)
}

type JobHandler struct {
	Store    *jobs.Store
	Meetings meetingGetter
	Log      *zap.SugaredLogger
}

type jobDTO struct {
	ID           string         `json:"id"`
	Type         jobs.Type      `json:"type"`
	Status       jobs.Status    `json:"status"`
	MeetingID    uint64         `json:"meeting_id"`
	OwnerID      uint64         `json:"owner_id"`
	Progress     int            `json:"progress"`
	CurrentStep  string         `json:"current_step,omitempty"`
	Metadata     map[string]any `json:"metadata"`
	Result       map[string]any `json:"result,omitempty"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func toDTO(j *jobs.Job) jobDTO {
	md := map[string]any(j.Metadata)
	if md == nil {
		md = map[string]any{}
	}
	return jobDTO{
		ID:           j.ID,
		Type:         j.Type,
		Status:       j.Status,
		MeetingID:    j.TargetID,
		OwnerID:      j.OwnerID,
		Progress:     j.Progress,
		CurrentStep:  j.Metadata.String(jobs.MetaCurrentStep),
		Metadata:     md,
		Result:       j.Result,
		ErrorMessage: j.ErrorMessage,
		StartedAt:    j.StartedAt,
		FinishedAt:   j.FinishedAt,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}

type createJobReq struct {
	Type      string         `json:"type"`
	MeetingID uint64         `json:"meeting_id"`
	Metadata  map[string]any `json:"metadata"`
}

func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req createJobReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	typ := jobs.Type(strings.TrimSpace(strings.ToLower(req.Type)))
	if !typ.Known() {
		http.Error(w, "unknown job type", http.StatusBadRequest)
		return
	}
	if req.MeetingID == 0 {
		http.Error(w, "meeting_id required", http.StatusBadRequest)
		return
	}

	m, err := h.Meetings.Get(r.Context(), req.MeetingID)
	if err != nil {
		if errors.Is(err, meeting.ErrNotFound) {
			http.Error(w, "meeting not found", http.StatusNotFound)
			return
		}
		h.serverError(w, "load meeting", err)
		return
	}
	if m.OwnerID != uid {
		http.Error(w, "meeting not found", http.StatusNotFound)
		return
	}

	md := jobs.JSONMap(req.Metadata)
	if md != nil {
		delete(md, jobs.MetaCurrentStep)
	}
	j := &jobs.Job{
		Type:     typ,
		TargetID: m.ID,
		OwnerID:  uid,
		Metadata: md,
	}
	if err := h.Store.Insert(r.Context(), j); err != nil {
		h.serverError(w, "insert job", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", "/jobs/"+j.ID)
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toDTO(j))
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	j, err := h.Store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		h.serverError(w, "get job", err)
		return
	}
	if j.OwnerID != uid {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toDTO(j))
}

func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	status := jobs.Status(strings.TrimSpace(strings.ToLower(r.URL.Query().Get("status"))))
	switch status {
	case "", jobs.StatusPending, jobs.StatusRunning, jobs.StatusCompleted, jobs.StatusFailed:
	default:
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	limit := 50
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	rows, err := h.Store.ListByOwner(r.Context(), uid, status, limit)
	if err != nil {
		h.serverError(w, "list jobs", err)
		return
	}
	out := make([]jobDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toDTO(&rows[i]))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *JobHandler) serverError(w http.ResponseWriter, op string, err error) {
	if h.Log != nil {
		h.Log.Errorw("request failed", "op", op, "error", err)
	}
	http.Error(w, "server error", http.StatusInternalServerError)
}
