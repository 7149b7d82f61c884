package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/repository"
	service "github.com/StoneBodini/Covid-19-Live-Analysis/internal/app"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/geo"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("snapshot unavailable")

	// ErrLimitExceeded is a bad request asking for more rows than allowed.
	ErrLimitExceeded = fmt.Errorf("%w: limit exceeds maximum", ErrBadRequest)
)

// opError ties an error to the handler operation that produced it.
type opError struct {
	op   string
	kind error
	err  error
}

func (e *opError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s: %v", e.op, e.kind)
	}
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *opError) Unwrap() []error {
	if e.err == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.err}
}

// NewKind builds an error of kind for op.
func NewKind(op string, kind error) error {
	return &opError{op: op, kind: kind}
}

// Wrap classifies err for op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &opError{op: op, kind: classify(err), err: err}
}

func classify(err error) error {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, model.ErrUnknownMetric):
		return ErrBadRequest
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, geo.ErrNoCounty):
		return ErrNotFound
	case errors.Is(err, service.ErrBackpressure):
		return ErrBackpressure
	case errors.Is(err, service.ErrNoSnapshot),
		errors.Is(err, service.ErrNotStarted):
		return ErrUnavailable
	default:
		return err
	}
}

// status maps an error to its HTTP status and response code.
func status(err error) (int, string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, ErrLimitExceeded):
		return http.StatusBadRequest, "limit_exceeded"
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// publicMessage hides internal detail from 5xx responses.
func publicMessage(err error, code int) string {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	if code >= http.StatusInternalServerError {
		return http.StatusText(code)
	}
	return err.Error()
}
