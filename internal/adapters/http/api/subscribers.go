package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/repository"
	service "github.com/StoneBodini/Covid-19-Live-Analysis/internal/app"
	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/logger"
)

// SubscribersDependencies defines the subscription operations.
type SubscribersDependencies interface {
	Subscribe(ctx context.Context, req service.SubscribeRequest) (repository.Subscriber, error)
	RequestUpdate(ctx context.Context, email string) (service.UpdateResult, error)
	Unsubscribe(ctx context.Context, email string) error
	Subscribers(ctx context.Context) ([]repository.Subscriber, error)
}

// SubscribersHandler handles subscription requests.
type SubscribersHandler struct {
	deps     SubscribersDependencies
	validate *validator.Validate
	logger   logger.Logger
}

// NewSubscribersHandler creates a new subscribers handler.
func NewSubscribersHandler(deps SubscribersDependencies, v *validator.Validate, l logger.Logger) *SubscribersHandler {
	return &SubscribersHandler{deps: deps, validate: v, logger: l}
}

// emailRequest is the body of POST /api/updates and DELETE /api/subscribers.
type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type subscribersResponse struct {
	Count       int                     `json:"count"`
	Subscribers []repository.Subscriber `json:"subscribers"`
}

type ackResponse struct {
	Status string `json:"status"`
}

// HandleSubscribers dispatches GET, POST and DELETE /api/subscribers.
func (h *SubscribersHandler) HandleSubscribers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.subscribe(w, r)
	case http.MethodDelete:
		h.unsubscribe(w, r)
	default:
		methodNotAllowed(w, "GET, POST, DELETE")
	}
}

func (h *SubscribersHandler) list(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_subscribers"
	subs, err := h.deps.Subscribers(r.Context())
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	if subs == nil {
		subs = []repository.Subscriber{}
	}
	writeJSON(w, http.StatusOK, subscribersResponse{Count: len(subs), Subscribers: subs})
}

func (h *SubscribersHandler) subscribe(w http.ResponseWriter, r *http.Request) {
	const op = "api.subscribe"
	var req service.SubscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	sub, err := h.deps.Subscribe(r.Context(), req)
	if err != nil {
		h.logFailure(r.Context(), op, err)
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *SubscribersHandler) unsubscribe(w http.ResponseWriter, r *http.Request) {
	const op = "api.unsubscribe"
	req := emailRequest{Email: r.URL.Query().Get("email")}
	if req.Email == "" && r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, Wrap(op, err))
			return
		}
	}
	if err := h.check(req); err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	if err := h.deps.Unsubscribe(r.Context(), req.Email); err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePostUpdate handles POST /api/updates.
func (h *SubscribersHandler) HandlePostUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.request_update"
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	if err := h.check(req); err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	res, err := h.deps.RequestUpdate(r.Context(), req.Email)
	if err != nil {
		h.logFailure(r.Context(), op, err)
		writeError(w, Wrap(op, err))
		return
	}
	if res.Duplicate {
		writeJSON(w, http.StatusOK, res)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (h *SubscribersHandler) check(req emailRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	if err := h.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: a valid email is required", ErrBadRequest)
	}
	return nil
}

func (h *SubscribersHandler) logFailure(ctx context.Context, op string, err error) {
	if code, _ := status(Wrap(op, err)); code >= http.StatusInternalServerError || code == http.StatusTooManyRequests {
		h.logger.Warn(ctx, "subscription request failed", logger.String("op", op), logger.Error(err))
	}
}
