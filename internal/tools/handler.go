package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/voxdesk/scheduling/internal/availability"
	"github.com/voxdesk/scheduling/internal/booking"
	"github.com/voxdesk/scheduling/internal/observability/metrics"
	"github.com/voxdesk/scheduling/internal/tenancy"
	"github.com/voxdesk/scheduling/pkg/logging"
)

const msgToolFailure = "I'm sorry, we're having trouble with scheduling right now. Let me take your information and have someone call you back."

// Handler dispatches voice tool invocations to the scheduling services.
type Handler struct {
	booking      *booking.Service
	availability *availability.Engine
	metrics      *metrics.SchedulingMetrics
	logger       *logging.Logger
}

// NewHandler creates a tool dispatch handler.
func NewHandler(bookingSvc *booking.Service, avail *availability.Engine, m *metrics.SchedulingMetrics, logger *logging.Logger) *Handler {
	if bookingSvc == nil {
		panic("tools: booking service required")
	}
	if avail == nil {
		panic("tools: availability engine required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{booking: bookingSvc, availability: avail, metrics: m, logger: logger}
}

// Dispatch routes one invocation and always returns a speakable response.
func (h *Handler) Dispatch(ctx context.Context, inv Invocation) Response {
	start := time.Now()
	resp := h.dispatch(ctx, inv)

	status := "error"
	if resp.Success {
		status = "ok"
	}
	h.metrics.ObserveToolCall(inv.Tool, status, time.Since(start).Seconds())
	return resp
}

func (h *Handler) dispatch(ctx context.Context, inv Invocation) Response {
	orgID, ok := tenancy.OrgIDFromContext(ctx)
	if !ok {
		orgID = inv.OrgID
	}
	if strings.TrimSpace(orgID) == "" {
		h.logger.Error("tools: invocation without org id", "tool", inv.Tool, "call_id", inv.CallID)
		return Response{Success: false, Message: msgToolFailure}
	}

	switch inv.Tool {
	case ToolBookAppointment:
		args, prompt := parseBookArgs(inv.Arguments)
		if prompt != "" {
			return Response{Success: false, Message: prompt}
		}
		res := h.booking.BookAppointment(ctx, orgID, booking.BookRequest{
			Datetime: args.Datetime,
			Name:     args.Name,
			Phone:    args.Phone,
			Email:    args.Email,
			Notes:    args.Notes,
		})
		return bookingResponse(res)

	case ToolCheckAvailability:
		args, prompt := parseCheckArgs(inv.Arguments)
		if prompt != "" {
			return Response{Success: false, Message: prompt}
		}
		res, err := h.availability.CheckAvailability(ctx, orgID, args.Date)
		if err != nil {
			// Infrastructure failure: apologize, never report a
			// misleading "no availability".
			h.logger.Error("tools: availability check failed", "error", err, "org_id", orgID, "date", args.Date)
			return Response{Success: false, Message: msgToolFailure}
		}
		return Response{
			Success: true,
			Message: res.Message,
			Data:    map[string]any{"date": res.Date, "slots": res.Slots, "closed": res.Closed},
		}

	case ToolCancelAppointment:
		args, prompt := parseCancelArgs(inv.Arguments)
		if prompt != "" {
			return Response{Success: false, Message: prompt}
		}
		return bookingResponse(h.booking.CancelAppointment(ctx, orgID, args.Phone, args.Reason))

	default:
		h.logger.Warn("tools: unknown tool", "tool", inv.Tool, "org_id", orgID)
		return Response{Success: false, Message: "I'm sorry, I can't help with that. Is there anything else I can do for you?"}
	}
}

func bookingResponse(res *booking.Result) Response {
	resp := Response{Success: res.Success, Message: res.Message}
	if res.Success {
		resp.Data = map[string]any{
			"appointment_id": res.AppointmentID.String(),
			"start_time":     res.StartTime.UTC().Format(time.RFC3339),
			"end_time":       res.EndTime.UTC().Format(time.RFC3339),
		}
		if res.ProviderBookingID != "" {
			resp.Data["provider_booking_id"] = res.ProviderBookingID
		}
	}
	return resp
}

// HandleInvocation is the HTTP entrypoint for the voice platform's tool
// webhook. It always answers 200 with a speakable message so the agent has
// something to say even when the request was malformed.
func (h *Handler) HandleInvocation(w http.ResponseWriter, r *http.Request) {
	var inv Invocation
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		h.logger.Error("tools: malformed invocation payload", "error", err)
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Message: msgToolFailure})
		return
	}

	orgID := strings.TrimSpace(r.Header.Get("X-Org-Id"))
	if orgID == "" {
		orgID = inv.OrgID
	}
	ctx := tenancy.WithOrgID(r.Context(), orgID)

	resp := h.Dispatch(ctx, inv)
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck reports liveness.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
