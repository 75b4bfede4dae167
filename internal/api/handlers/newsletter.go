// Package handlers contains the HTTP handler implementations for the
// newsletter API: public subscribe/unsubscribe and the admin-only bulk send.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"forkfire/internal/core"
	"forkfire/internal/types"
)

// --- Service Interfaces ---

// SubscriptionService is the subscribe/unsubscribe contract consumed by the
// handler. Implemented by newsletter.Service.
type SubscriptionService interface {
	Subscribe(ctx context.Context, email string) (types.SubscribeOutcome, error)
	Unsubscribe(ctx context.Context, email string) error
}

// DispatchService is the bulk-send contract consumed by the handler.
// Implemented by newsletter.Dispatcher.
type DispatchService interface {
	Send(ctx context.Context, subject, htmlContent string) (*types.DispatchReport, error)
}

// --- Request/Response Models ---

// SubscribeRequest is the body for POST /subscribe and POST /unsubscribe.
type SubscribeRequest struct {
	Email string `json:"email" validate:"required"`
}

// SendRequest is the body for POST /send.
type SendRequest struct {
	Subject     string `json:"subject" validate:"required"`
	HTMLContent string `json:"htmlContent" validate:"required"`
}

// MessageResponse is the simple confirmation body used across the
// newsletter surface.
type MessageResponse struct {
	Message string `json:"message"`
}

// --- Handler ---

// NewsletterHandler exposes the newsletter subscription directory and the
// dispatch engine over HTTP.
type NewsletterHandler struct {
	subs      SubscriptionService
	dispatch  DispatchService
	validator *core.Validator
	logger    *slog.Logger
	adminGate func(http.Handler) http.Handler
}

// NewNewsletterHandler creates a handler. adminGate wraps the send route;
// pass core.Server.AdminOnly in production.
func NewNewsletterHandler(
	subs SubscriptionService,
	dispatch DispatchService,
	v *core.Validator,
	logger *slog.Logger,
	adminGate func(http.Handler) http.Handler,
) *NewsletterHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NewsletterHandler{
		subs:      subs,
		dispatch:  dispatch,
		validator: v,
		logger:    logger,
		adminGate: adminGate,
	}
}

// RegisterRoutes mounts the newsletter endpoints onto the router group.
// Subscribe and unsubscribe are public; send is admin-gated.
func (h *NewsletterHandler) RegisterRoutes(r chi.Router) {
	r.Post("/subscribe", h.HandleSubscribe)
	r.Post("/unsubscribe", h.HandleUnsubscribe)
	r.With(h.adminGate).Post("/send", h.HandleSend)
}

// HandleSubscribe implements POST /subscribe.
//
// Responses:
//   - 201 for a new subscription
//   - 200 when already subscribed (idempotent confirmation, same body shape)
//   - 400 for a missing or malformed email
func (h *NewsletterHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		core.Error(w, r, err)
		return
	}

	outcome, err := h.subs.Subscribe(r.Context(), req.Email)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if outcome == types.OutcomeAlreadySubscribed {
		core.JSON(w, r, http.StatusOK, MessageResponse{
			Message: "You are already subscribed to our newsletter. Thank you!",
		})
		return
	}

	core.JSON(w, r, http.StatusCreated, MessageResponse{
		Message: "Thank you for subscribing to our newsletter!",
	})
}

// HandleUnsubscribe implements POST /unsubscribe.
//
// Always returns 200 with the same body whether or not the email was ever
// subscribed, so the endpoint cannot be used to probe the directory.
func (h *NewsletterHandler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.subs.Unsubscribe(r.Context(), req.Email); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, MessageResponse{
		Message: "You have been unsubscribed from our newsletter.",
	})
}

// HandleSend implements POST /send (admin only).
//
// Responses:
//   - 200 when every subscriber was sent to successfully
//   - 207 for a partial outcome, including zero successes, with counts
//   - 400 for missing subject/content
//   - 404 when there are no subscribers
func (h *NewsletterHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		core.Error(w, r, err)
		return
	}

	report, err := h.dispatch.Send(r.Context(), req.Subject, req.HTMLContent)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if report.Complete() {
		core.JSON(w, r, http.StatusOK, MessageResponse{
			Message: fmt.Sprintf("Newsletter sent successfully to all %d subscribers.", report.Successes),
		})
		return
	}

	core.JSON(w, r, http.StatusMultiStatus, MessageResponse{
		Message: fmt.Sprintf("Newsletter dispatch completed. %d sent successfully, %d failed.",
			report.Successes, report.Failures),
	})
}
