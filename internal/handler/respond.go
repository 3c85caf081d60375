package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

var (
	errRouteNotFound = apperr.New(apperr.NotFound, "route not found")
	errBodyTooLarge  = apperr.New(apperr.InvalidArgument, "request body too large")
	errInvalidID     = apperr.New(apperr.InvalidArgument, "invalid id")
)

// fieldError describes one invalid request field.
type fieldError struct {
	Field   string
	Message string
}

// validationError is an InvalidArgument error carrying per-field details.
type validationError struct {
	err    *apperr.Error
	Fields []fieldError
}

func (e *validationError) Error() string { return e.err.Error() }

func (e *validationError) Unwrap() error { return e.err }

func invalid(msg string, fields ...fieldError) error {
	return &validationError{
		err:    apperr.New(apperr.InvalidArgument, msg),
		Fields: fields,
	}
}

// statusOf maps an error kind to its HTTP status.
func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.InvalidArgument, apperr.EmptyCart:
		return http.StatusBadRequest
	case apperr.InsufficientStock, apperr.InvalidStateTransition:
		return http.StatusConflict
	case apperr.Unauthenticated:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.StoreFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes {"code","kind","message","details"} for err. Causes of
// classified errors are logged, never sent.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	code := statusOf(kind)
	if errors.Is(err, errBodyTooLarge) {
		code = http.StatusRequestEntityTooLarge
	}

	lg := zctx.From(r.Context())
	switch {
	case code >= 500:
		lg.Error("Request failed", zap.Error(err), zap.Stringer("kind", kind))
	case kind == apperr.Unauthenticated || kind == apperr.Forbidden:
		lg.Info("Request rejected", zap.Error(err))
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(code)
	e.FieldStart("kind")
	e.Str(kind.String())
	e.FieldStart("message")
	e.Str(apperr.Message(err))

	var ve *validationError
	if errors.As(err, &ve) && len(ve.Fields) > 0 {
		e.FieldStart("details")
		e.ArrStart()
		for _, f := range ve.Fields {
			e.ObjStart()
			e.FieldStart("field")
			e.Str(f.Field)
			e.FieldStart("message")
			e.Str(f.Message)
			e.ObjEnd()
		}
		e.ArrEnd()
	}
	e.ObjEnd()

	if code == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="storefront"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Warn("Write response", zap.Error(err))
	}
}

// decode reads a single JSON object into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		var syntax *json.SyntaxError
		var typ *json.UnmarshalTypeError
		switch {
		case errors.As(err, &tooLarge):
			return errBodyTooLarge
		case errors.Is(err, io.EOF):
			return invalid("request body is empty")
		case errors.As(err, &syntax), errors.Is(err, io.ErrUnexpectedEOF):
			return invalid("request body is not valid JSON")
		case errors.As(err, &typ):
			return invalid("invalid request body", fieldError{
				Field:   typ.Field,
				Message: "must be " + typ.Type.String(),
			})
		default:
			// Unknown fields and other decoder complaints.
			return invalid(err.Error())
		}
	}
	if dec.More() {
		return invalid("request body must contain a single JSON object")
	}
	return validate(dst)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, errInvalidID
	}
	return id, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (int, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, invalid("invalid query parameter", fieldError{Field: name, Message: "must be an integer"})
	}
	return v, true, nil
}
