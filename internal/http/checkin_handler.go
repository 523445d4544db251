package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"checkin-desk/internal/checkin"
	"checkin-desk/internal/service"
	"checkin-desk/internal/store"

	"go.uber.org/zap"
)

// CheckInService what the handler needs from the coordinator
type CheckInService interface {
	CheckIn(ctx context.Context, actor, eventID, orgID string, req checkin.Request, allowIncompleteWaivers bool) ([]string, error)
	Preview(ctx context.Context, eventID, orgID string, req checkin.Request, allowIncompleteWaivers bool) (*service.Preview, error)
	Summary(ctx context.Context, eventID, orgID string) (*service.Summary, error)
	Roster(ctx context.Context, eventID, orgID string) (*service.Summary, error)
	Occupancy(ctx context.Context, eventID string) (*service.OccupancyReport, error)
}

// CheckInHandler check-in desk endpoints
type CheckInHandler struct {
	svc    CheckInService
	logger *zap.Logger
}

func NewCheckInHandler(svc CheckInService, logger *zap.Logger) *CheckInHandler {
	return &CheckInHandler{svc: svc, logger: logger}
}

// checkInBody {"teams": {"<teamId>": "<action>"}, "allow_incomplete_waivers": false}
type checkInBody struct {
	Teams                  checkin.Request `json:"teams"`
	AllowIncompleteWaivers bool            `json:"allow_incomplete_waivers"`
}

type checkInResult struct {
	Processed []string `json:"processed"`
}

// CheckIn POST .../orgs/{org}/checkin
func (h *CheckInHandler) CheckIn(w http.ResponseWriter, r *http.Request, eventID, orgID string) {
	var body checkInBody
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(fmt.Sprintf("invalid request body: %v", err)))
		return
	}

	actor := actorFromReq(r)
	processed, err := h.svc.CheckIn(r.Context(), actor, eventID, orgID, body.Teams, body.AllowIncompleteWaivers)
	if err != nil {
		h.writeError(w, "CheckIn", eventID, orgID, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(checkInResult{Processed: processed}))
}

// Preview POST .../orgs/{org}/checkin/preview
func (h *CheckInHandler) Preview(w http.ResponseWriter, r *http.Request, eventID, orgID string) {
	var body checkInBody
	if err := readBodyJSON(r, maxBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(fmt.Sprintf("invalid request body: %v", err)))
		return
	}

	preview, err := h.svc.Preview(r.Context(), eventID, orgID, body.Teams, body.AllowIncompleteWaivers)
	if err != nil {
		h.writeError(w, "Preview", eventID, orgID, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(preview))
}

// Summary GET .../orgs/{org}/summary
func (h *CheckInHandler) Summary(w http.ResponseWriter, r *http.Request, eventID, orgID string) {
	summary, err := h.svc.Summary(r.Context(), eventID, orgID)
	if err != nil {
		h.writeError(w, "Summary", eventID, orgID, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(summary))
}

// Roster GET .../orgs/{org}/roster.xlsx
func (h *CheckInHandler) Roster(w http.ResponseWriter, r *http.Request, eventID, orgID string) {
	summary, err := h.svc.Roster(r.Context(), eventID, orgID)
	if err != nil {
		h.writeError(w, "Roster", eventID, orgID, err)
		return
	}
	data, err := GenerateRosterExport(summary)
	if err != nil {
		h.writeError(w, "Roster", eventID, orgID, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=roster-%s-%s.xlsx", eventID, orgID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Occupancy GET /checkin/api/v1/events/{event}/occupancy
func (h *CheckInHandler) Occupancy(w http.ResponseWriter, r *http.Request, eventID string) {
	report, err := h.svc.Occupancy(r.Context(), eventID)
	if err != nil {
		h.writeError(w, "Occupancy", eventID, "", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(report))
}

func (h *CheckInHandler) writeError(w http.ResponseWriter, op, eventID, orgID string, err error) {
	status := statusFor(err)
	fields := []zap.Field{
		zap.String("event_id", eventID),
		zap.String("org_id", orgID),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", fields...)
	} else {
		h.logger.Info(op+" rejected", fields...)
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	var te *checkin.TeamError
	if errors.As(err, &te) {
		writeJSON(w, status, FailWith(message, map[string]string{"team_id": te.TeamID}))
		return
	}
	writeJSON(w, status, Fail(message))
}

// statusFor maps error kinds to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, checkin.ErrEventNotFound),
		errors.Is(err, checkin.ErrOrganizationNotFound),
		errors.Is(err, checkin.ErrTeamNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkin.ErrInvalidAction):
		return http.StatusBadRequest
	case errors.Is(err, checkin.ErrNotConfigured),
		errors.Is(err, checkin.ErrAlreadyCheckedIn),
		errors.Is(err, checkin.ErrNotCheckedIn):
		return http.StatusConflict
	case errors.Is(err, checkin.ErrNoSpace),
		errors.Is(err, checkin.ErrRoomNotFound),
		errors.Is(err, checkin.ErrWaiverMissing),
		errors.Is(err, checkin.ErrSuffixExhausted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrConflict):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
