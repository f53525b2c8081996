package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/beaconpage/lifecycle-engine/internal/automation"
	"github.com/beaconpage/lifecycle-engine/internal/domain"
)

// HandleListRules returns all automation rules for a profile.
// GET /api/automation/rules?profile_id=
func (h *Handlers) HandleListRules(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFromRequest(r)
	if profileID == "" {
		writeJSONError(w, "profile_id is required", http.StatusBadRequest)
		return
	}

	rules, err := h.rules.List(r.Context(), profileID)
	if err != nil {
		writeJSONError(w, "failed to list rules", http.StatusInternalServerError)
		return
	}
	if rules == nil {
		rules = []domain.AutomationRule{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"total": len(rules),
	})
}

type createRuleRequest struct {
	Name        string `json:"name"`
	TriggerType string `json:"trigger_type"`
	ActionType  string `json:"action_type"`
	DelayHours  int    `json:"delay_hours"`
	TemplateID  string `json:"template_id"`
	CouponID    string `json:"coupon_id"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
}

// HandleCreateRule creates an automation rule.
// POST /api/automation/rules
func (h *Handlers) HandleCreateRule(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFromRequest(r)
	if profileID == "" {
		writeJSONError(w, "profile_id is required", http.StatusBadRequest)
		return
	}

	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	rule, err := h.rules.Create(r.Context(), profileID, automation.RuleInput{
		Name:        req.Name,
		TriggerType: domain.TriggerType(req.TriggerType),
		ActionType:  domain.ActionType(req.ActionType),
		DelayHours:  req.DelayHours,
		TemplateID:  req.TemplateID,
		CouponID:    req.CouponID,
		Subject:     req.Subject,
		Body:        req.Body,
	})
	if err != nil {
		if errors.Is(err, automation.ErrInvalidTrigger) || errors.Is(err, automation.ErrInvalidAction) {
			writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// HandleGetRule returns one rule.
// GET /api/automation/rules/{ruleID}
func (h *Handlers) HandleGetRule(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFromRequest(r)
	ruleID := chi.URLParam(r, "ruleID")

	rule, err := h.rules.Get(r.Context(), profileID, ruleID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, rule)
	case errors.Is(err, automation.ErrRuleNotFound):
		writeJSONError(w, "rule not found", http.StatusNotFound)
	default:
		writeJSONError(w, "failed to get rule", http.StatusInternalServerError)
	}
}

type updateRuleRequest struct {
	Name       *string `json:"name"`
	DelayHours *int    `json:"delay_hours"`
	TemplateID *string `json:"template_id"`
	CouponID   *string `json:"coupon_id"`
	Subject    *string `json:"subject"`
	Body       *string `json:"body"`
	IsActive   *bool   `json:"is_active"`
}

// HandleUpdateRule applies a partial update to a rule.
// PATCH /api/automation/rules/{ruleID}
func (h *Handlers) HandleUpdateRule(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFromRequest(r)
	ruleID := chi.URLParam(r, "ruleID")

	var req updateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err := h.rules.Update(r.Context(), profileID, ruleID, automation.RuleUpdate{
		Name:       req.Name,
		DelayHours: req.DelayHours,
		TemplateID: req.TemplateID,
		CouponID:   req.CouponID,
		Subject:    req.Subject,
		Body:       req.Body,
		IsActive:   req.IsActive,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	case errors.Is(err, automation.ErrRuleNotFound):
		writeJSONError(w, "rule not found", http.StatusNotFound)
	default:
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	}
}

// HandleDeleteRule removes a rule.
// DELETE /api/automation/rules/{ruleID}
func (h *Handlers) HandleDeleteRule(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFromRequest(r)
	ruleID := chi.URLParam(r, "ruleID")

	err := h.rules.Delete(r.Context(), profileID, ruleID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	case errors.Is(err, automation.ErrRuleNotFound):
		writeJSONError(w, "rule not found", http.StatusNotFound)
	default:
		writeJSONError(w, "failed to delete rule", http.StatusInternalServerError)
	}
}

// HandleListLogs returns a profile's recent automation logs.
// GET /api/automation/logs?profile_id=&limit=
func (h *Handlers) HandleListLogs(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFromRequest(r)
	if profileID == "" {
		writeJSONError(w, "profile_id is required", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := h.rules.Logs(r.Context(), profileID, limit)
	if err != nil {
		writeJSONError(w, "failed to list logs", http.StatusInternalServerError)
		return
	}
	if logs == nil {
		logs = []domain.AutomationLog{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"total": len(logs),
	})
}

// HandleProcessLogs runs one log processor batch. The external scheduler
// authenticates with the X-Cron-Secret header.
// POST /cron/process-logs
func (h *Handlers) HandleProcessLogs(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSONError(w, "cron endpoint disabled", http.StatusServiceUnavailable)
		return
	}
	got := r.Header.Get("X-Cron-Secret")
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.cronSecret)) != 1 {
		writeJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	stats, err := h.processor.ProcessBatch(r.Context(), time.Now(), h.batchLimit)
	if err != nil {
		writeJSONError(w, "batch failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
