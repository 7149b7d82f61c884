// Package site serves the HTML pages and form posts of the map service.
package site

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/render"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/repository"
	service "github.com/StoneBodini/Covid-19-Live-Analysis/internal/app"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/model"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/ranking"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/types"
	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/logger"
)

// Error constants
var (
	ErrRender = errors.New("page render failed")
)

// Messages shown when a form cannot be completed.
const (
	MsgRequestNotFound     = "Error sending email. It is either not in the database or you mistyped it. Please hit the back button and retry."
	MsgUnsubscribeNotFound = "No email that matches input email in dataset. Please press the back button to continue."
	MsgBusy                = "We are sending a lot of email right now. Please try again in a minute."
	MsgUnavailable         = "Today's data is not ready yet. Please try again later."
	MsgInternal            = "Something went wrong. Please try again later."
)

// Dependencies are the service operations behind the pages.
type Dependencies interface {
	Snapshot() (*service.Snapshot, error)
	Subscribe(ctx context.Context, req service.SubscribeRequest) (repository.Subscriber, error)
	RequestUpdate(ctx context.Context, email string) (service.UpdateResult, error)
	Unsubscribe(ctx context.Context, email string) error
	Subscribers(ctx context.Context) ([]repository.Subscriber, error)
}

// Option configures the site.
type Option func(*Handler)

// WithLogger sets the page logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithTableSize sets how many rows the map pages list.
func WithTableSize(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.tableSize = n
		}
	}
}

// Handler renders the pages.
type Handler struct {
	deps      Dependencies
	logger    logger.Logger
	tableSize int
}

// NewHandler creates a page handler.
func NewHandler(deps Dependencies, opts ...Option) *Handler {
	h := &Handler{deps: deps, logger: logger.Nop(), tableSize: ranking.DefaultSize}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register attaches the page routes to mux.
func Register(_ context.Context, mux *http.ServeMux, deps Dependencies, opts ...Option) {
	if mux == nil {
		panic("mux is nil")
	}
	h := NewHandler(deps, opts...)

	mux.HandleFunc("GET /{$}", h.page("home.html", "Home Page"))
	mux.HandleFunc("GET /home", h.page("home.html", "Home Page"))
	mux.HandleFunc("GET /total", h.mapPage(model.MetricCases, "Total Cases"))
	mux.HandleFunc("GET /100k", h.mapPage(model.MetricAvgPer100k, "Cases Per 100k"))
	mux.HandleFunc("GET /potential", h.mapPage(model.MetricPotentialRisk, "Potential Risk"))
	mux.HandleFunc("GET /line", h.HandleLine)
	mux.HandleFunc("GET /email", h.HandleEmailList)
	mux.HandleFunc("GET /subscribe", h.page("subscribe.html", "Subscribe To Email"))
	mux.HandleFunc("GET /requestpage", h.page("requestpage.html", "Request update"))
	mux.HandleFunc("GET /unsubscribe", h.page("unsubscribe.html", "Unsubscribe"))

	mux.HandleFunc("POST /subscribeform", h.HandleSubscribeForm)
	mux.HandleFunc("POST /requestform", h.HandleRequestForm)
	mux.HandleFunc("POST /unsubscribeform", h.HandleUnsubscribeForm)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(StaticFS())))
	mux.HandleFunc("GET /uploads/line.png", h.HandleTrendImage)
}

// pageData is shared by every template.
type pageData struct {
	Title string
	Date  string
	Head  template.HTML

	Map        template.HTML
	Legend     string
	Table      types.Leaderboard
	Users      []repository.Subscriber
	Image      string
	Message    string
	HasMessage bool
}

func (h *Handler) page(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, http.StatusOK, name, pageData{Title: title})
	}
}

func (h *Handler) mapPage(m model.Metric, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := h.deps.Snapshot()
		if err != nil {
			h.fail(w, r, err)
			return
		}
		art, ok := snap.Artifact(m)
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.render(w, r, http.StatusOK, "map.html", pageData{
			Title:  title,
			Date:   snap.Date().Format(model.DateLayout),
			Head:   render.LeafletHead,
			Map:    art.HTML,
			Legend: art.Legend,
			Table:  snap.Leaderboard(m, h.tableSize),
		})
	}
}

// HandleLine handles GET /line.
func (h *Handler) HandleLine(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Snapshot()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "line.html", pageData{
		Title: "Line Graph",
		Date:  snap.Date().Format(model.DateLayout),
		Image: "/uploads/line.png",
	})
}

// HandleTrendImage serves the trend chart written by the snapshot build.
func (h *Handler) HandleTrendImage(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Snapshot()
	if err != nil || snap.TrendPNGPath() == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, snap.TrendPNGPath())
}

// HandleEmailList handles GET /email.
func (h *Handler) HandleEmailList(w http.ResponseWriter, r *http.Request) {
	users, err := h.deps.Subscribers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "email.html", pageData{Title: "Email list", Users: users})
}

// HandleSubscribeForm handles POST /subscribeform.
func (h *Handler) HandleSubscribeForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.message(w, r, http.StatusBadRequest, "Subscription Failed", service.MsgMissingFields)
		return
	}
	_, err := h.deps.Subscribe(r.Context(), service.SubscribeRequest{
		FirstName: r.PostForm.Get("first_name"),
		LastName:  r.PostForm.Get("last_name"),
		Email:     r.PostForm.Get("email"),
		County:    r.PostForm.Get("county"),
		State:     r.PostForm.Get("state"),
	})
	var verr *service.ValidationError
	switch {
	case err == nil:
		h.render(w, r, http.StatusOK, "subscribeform.html", pageData{Title: "Thank You!"})
	case errors.As(err, &verr):
		h.message(w, r, http.StatusBadRequest, "Subscription Failed", verr.Message)
	default:
		h.fail(w, r, err)
	}
}

// HandleRequestForm handles POST /requestform.
func (h *Handler) HandleRequestForm(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email_request"))
	if email == "" {
		h.message(w, r, http.StatusBadRequest, "Request Failed", MsgRequestNotFound)
		return
	}
	_, err := h.deps.RequestUpdate(r.Context(), email)
	switch {
	case err == nil:
		h.render(w, r, http.StatusOK, "requestform.html", pageData{Title: "Request Sent"})
	case errors.Is(err, repository.ErrNotFound):
		h.message(w, r, http.StatusNotFound, "Request Failed", MsgRequestNotFound)
	default:
		h.fail(w, r, err)
	}
}

// HandleUnsubscribeForm handles POST /unsubscribeform.
func (h *Handler) HandleUnsubscribeForm(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email_remove"))
	if email == "" {
		h.message(w, r, http.StatusBadRequest, "Unsubscribe Failed", MsgUnsubscribeNotFound)
		return
	}
	err := h.deps.Unsubscribe(r.Context(), email)
	switch {
	case err == nil:
		h.render(w, r, http.StatusOK, "unsubscribeform.html", pageData{Title: "Unsubscribes"})
	case errors.Is(err, repository.ErrNotFound):
		h.message(w, r, http.StatusNotFound, "Unsubscribe Failed", MsgUnsubscribeNotFound)
	default:
		h.fail(w, r, err)
	}
}

func (h *Handler) message(w http.ResponseWriter, r *http.Request, status int, title, msg string) {
	h.render(w, r, status, "message.html", pageData{Title: title, Message: msg, HasMessage: true})
}

// fail renders a service error as a message page.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrBackpressure):
		h.message(w, r, http.StatusTooManyRequests, "Try Again Soon", MsgBusy)
	case errors.Is(err, service.ErrNoSnapshot), errors.Is(err, service.ErrNotStarted):
		h.message(w, r, http.StatusServiceUnavailable, "Not Ready", MsgUnavailable)
	default:
		h.logger.Error(r.Context(), "page request failed", logger.String("path", r.URL.Path), logger.Error(err))
		h.message(w, r, http.StatusInternalServerError, "Error", MsgInternal)
	}
}
