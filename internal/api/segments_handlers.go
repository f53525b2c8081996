package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/beaconpage/lifecycle-engine/internal/domain"
	"github.com/beaconpage/lifecycle-engine/internal/segments"
)

// HandleListSegments returns all segments with live membership.
// GET /api/segments?profile_id=
func (h *Handlers) HandleListSegments(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFromRequest(r)
	if profileID == "" {
		writeJSONError(w, "profile_id is required", http.StatusBadRequest)
		return
	}

	views, err := h.segments.ListWithMembership(r.Context(), profileID)
	if err != nil {
		writeJSONError(w, "failed to list segments", http.StatusInternalServerError)
		return
	}
	if views == nil {
		views = []segments.SegmentView{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"segments": views,
		"total":    len(views),
	})
}

type createSegmentRequest struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Criteria    domain.SegmentCriteria `json:"criteria"`
	Color       string                 `json:"color"`
	Icon        string                 `json:"icon"`
	AutoActions []domain.AutoAction    `json:"auto_actions"`
}

// HandleCreateSegment creates a custom segment.
// POST /api/segments
func (h *Handlers) HandleCreateSegment(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFromRequest(r)
	if profileID == "" {
		writeJSONError(w, "profile_id is required", http.StatusBadRequest)
		return
	}

	var req createSegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	def, err := h.segments.CreateCustom(r.Context(), profileID, segments.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Criteria:    req.Criteria,
		Color:       req.Color,
		Icon:        req.Icon,
		AutoActions: req.AutoActions,
	})
	if err != nil {
		if errors.Is(err, segments.ErrInvalidCriteria) {
			writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, def)
}

// HandleSeedSegments seeds the system catalog for a profile.
// POST /api/segments/seed
func (h *Handlers) HandleSeedSegments(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFromRequest(r)
	if profileID == "" {
		writeJSONError(w, "profile_id is required", http.StatusBadRequest)
		return
	}

	if err := h.segments.Seed(r.Context(), profileID); err != nil {
		if errors.Is(err, segments.ErrAlreadySeeded) {
			writeJSONError(w, "system segments already seeded", http.StatusConflict)
			return
		}
		writeJSONError(w, "failed to seed segments", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "seeded"})
}

type updateSegmentRequest struct {
	Name        *string                 `json:"name"`
	Description *string                 `json:"description"`
	Criteria    *domain.SegmentCriteria `json:"criteria"`
	Color       *string                 `json:"color"`
	Icon        *string                 `json:"icon"`
	AutoActions *[]domain.AutoAction    `json:"auto_actions"`
	IsActive    *bool                   `json:"is_active"`
}

// HandleUpdateSegment applies a partial update.
// PATCH /api/segments/{segmentID}
func (h *Handlers) HandleUpdateSegment(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFromRequest(r)
	segmentID := chi.URLParam(r, "segmentID")

	var req updateSegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err := h.segments.Update(r.Context(), profileID, segmentID, segments.UpdateFields{
		Name:        req.Name,
		Description: req.Description,
		Criteria:    req.Criteria,
		Color:       req.Color,
		Icon:        req.Icon,
		AutoActions: req.AutoActions,
		IsActive:    req.IsActive,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	case errors.Is(err, segments.ErrNotFound):
		writeJSONError(w, "segment not found", http.StatusNotFound)
	case errors.Is(err, segments.ErrSystemSegment):
		writeJSONError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, segments.ErrInvalidCriteria):
		writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		writeJSONError(w, "failed to update segment", http.StatusInternalServerError)
	}
}

// HandleDeleteSegment removes a custom segment.
// DELETE /api/segments/{segmentID}
func (h *Handlers) HandleDeleteSegment(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFromRequest(r)
	segmentID := chi.URLParam(r, "segmentID")

	err := h.segments.Delete(r.Context(), profileID, segmentID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	case errors.Is(err, segments.ErrNotFound):
		writeJSONError(w, "segment not found", http.StatusNotFound)
	case errors.Is(err, segments.ErrSystemSegment):
		writeJSONError(w, "system segments cannot be deleted", http.StatusForbidden)
	default:
		writeJSONError(w, "failed to delete segment", http.StatusInternalServerError)
	}
}

// HandleSegmentCount returns the cached membership count without running
// a population scan.
// GET /api/segments/{segmentID}/count
func (h *Handlers) HandleSegmentCount(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFromRequest(r)
	segmentID := chi.URLParam(r, "segmentID")

	count, err := h.segments.Count(r.Context(), profileID, segmentID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"segment_id":     segmentID,
			"customer_count": count,
		})
	case errors.Is(err, segments.ErrNotFound):
		writeJSONError(w, "segment not found", http.StatusNotFound)
	default:
		writeJSONError(w, "failed to get segment count", http.StatusInternalServerError)
	}
}

// HandleRecomputeSegment recomputes membership for one segment.
// POST /api/segments/{segmentID}/recompute
func (h *Handlers) HandleRecomputeSegment(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFromRequest(r)
	segmentID := chi.URLParam(r, "segmentID")

	res, err := h.segments.Recompute(r.Context(), profileID, segmentID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, segments.ErrNotFound):
		writeJSONError(w, "segment not found", http.StatusNotFound)
	default:
		writeJSONError(w, "failed to recompute segment", http.StatusInternalServerError)
	}
}
