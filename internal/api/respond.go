package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"medledger/m/domain"
	"medledger/m/internal/logger"
)

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Message        string            `json:"message"`
	ErrorCode      string            `json:"errorCode"`
	StatusCode     int               `json:"statusCode"`
	Errors         map[string]string `json:"errors,omitempty"`
	AdditionalData map[string]any    `json:"additionalData,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
	TraceID        string            `json:"traceId,omitempty"`
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindDuplicate:
		return http.StatusConflict
	case domain.KindInsufficientStock, domain.KindBusinessRule, domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must contain at least " + fe.Param() + " entries"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "ne":
		return "must not be " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}

// fieldPath drops the struct name from a validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

// bind decodes the body into dest and runs the validate tags.
func (h *Handler) bind(r *http.Request, dest interface{}) error {
	if err := decodeJSON(r, dest); err != nil {
		return domain.Validation("MALFORMED_BODY", "request body is not valid JSON: "+err.Error())
	}
	return h.validate.Struct(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

// respondError translates err into the error payload. Domain errors keep
// their kind and code; anything else is logged and reported as a 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorResponse{
		Timestamp: time.Now().UTC(),
		TraceID:   logger.RequestID(r.Context()),
	}

	var (
		de *domain.Error
		ve validator.ValidationErrors
	)
	switch {
	case errors.As(err, &ve):
		body.StatusCode = http.StatusBadRequest
		body.ErrorCode = string(domain.KindValidation)
		body.Message = "request validation failed"
		body.Errors = make(map[string]string, len(ve))
		for _, fe := range ve {
			body.Errors[fieldPath(fe)] = fieldMessage(fe)
		}
	case errors.As(err, &de):
		body.StatusCode = statusFor(de.Kind)
		body.ErrorCode = de.Code
		body.Message = de.Message
		body.AdditionalData = de.Details
		if len(de.Fields) > 0 {
			body.Errors = make(map[string]string, len(de.Fields))
			for _, f := range de.Fields {
				body.Errors[f] = de.Message
			}
		}
	default:
		logger.FromContext(r.Context()).Error("request failed", zap.Error(err))
		body.StatusCode = http.StatusInternalServerError
		body.ErrorCode = "INTERNAL_ERROR"
		body.Message = "an unexpected error occurred"
	}
	respondJSON(w, body.StatusCode, body)
}

func respondDeleted(w http.ResponseWriter, r *http.Request, ok bool, err error, resource string, id int64) {
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !ok {
		respondError(w, r, domain.NotFound(resource, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validation("INVALID_ID", "invalid "+name+" "+strconv.Quote(raw), name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, fallback int64) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, domain.Validation("INVALID_QUERY", name+" must be an integer", name)
	}
	return n, nil
}

const dateLayout = "2006-01-02"

// parseDate accepts YYYY-MM-DD or RFC 3339. A bare date used as an upper
// bound covers the whole day.
func parseDate(raw, name string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, domain.Validation("INVALID_DATE", name+" must be in YYYY-MM-DD or RFC 3339 format", name)
	}
	return t, nil
}

// dateRange reads from/to query parameters. Without from the range starts
// thirty days before to; without to it ends now.
func dateRange(r *http.Request) (time.Time, time.Time, bool, error) {
	q := r.URL.Query()
	rawFrom, rawTo := strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to"))
	given := rawFrom != "" || rawTo != ""

	to := time.Now()
	if rawTo != "" {
		t, err := parseDate(rawTo, "to", true)
		if err != nil {
			return time.Time{}, time.Time{}, given, err
		}
		to = t
	}
	from := to.AddDate(0, 0, -30)
	if rawFrom != "" {
		t, err := parseDate(rawFrom, "from", false)
		if err != nil {
			return time.Time{}, time.Time{}, given, err
		}
		from = t
	}
	return from, to, given, nil
}
