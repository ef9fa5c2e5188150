package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/tailor-orders/internal/domain/access"
	"github.com/xenking/tailor-orders/internal/domain/catalog"
	"github.com/xenking/tailor-orders/internal/domain/customer"
	"github.com/xenking/tailor-orders/internal/domain/order"
	"github.com/xenking/tailor-orders/internal/domain/shop"
	"github.com/xenking/tailor-orders/internal/domain/validation"
)

const maxBodyBytes = 1 << 20

// sentinel errors and the status they map to. The sentinel's own message is
// what the client sees.
var errorStatus = []struct {
	err    error
	status int
}{
	{order.ErrNotFound, http.StatusNotFound},
	{customer.ErrNotFound, http.StatusNotFound},
	{shop.ErrNotFound, http.StatusNotFound},
	{catalog.ErrTypeNotFound, http.StatusNotFound},
	{catalog.ErrSizeNotFound, http.StatusNotFound},
	{access.ErrUserNotFound, http.StatusNotFound},
	{access.ErrRoleNotFound, http.StatusNotFound},
	{access.ErrPermissionNotFound, http.StatusNotFound},

	{shop.ErrInUse, http.StatusConflict},
	{shop.ErrCodeTaken, http.StatusConflict},
	{catalog.ErrTypeInUse, http.StatusConflict},
	{catalog.ErrSizeInUse, http.StatusConflict},
	{catalog.ErrNameTaken, http.StatusConflict},
	{customer.ErrInUse, http.StatusConflict},
	{access.ErrEmailTaken, http.StatusConflict},
	{access.ErrNameTaken, http.StatusConflict},
	{access.ErrRoleInUse, http.StatusConflict},
	{access.ErrPermissionInUse, http.StatusConflict},
	{access.ErrAdministrator, http.StatusConflict},
	{access.ErrSelfDelete, http.StatusConflict},
	{order.ErrInvalidTransition, http.StatusConflict},

	{access.ErrInvalidCredentials, http.StatusUnauthorized},
	{access.ErrUnauthenticated, http.StatusUnauthorized},
	{access.ErrForbidden, http.StatusForbidden},
}

// handleError writes the response for a failed operation.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	if verr, ok := validation.As(err); ok {
		writeValidation(w, verr)
		return
	}
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			msg := e.err.Error()
			if e.err == order.ErrInvalidTransition { //nolint:errorlint // identity check on the matched sentinel
				msg = err.Error()
			}
			writeError(w, e.status, msg)
			return
		}
	}
	zctx.From(r.Context()).Error("Request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeRaw(w, status, e.Bytes())
}

func writeValidation(w http.ResponseWriter, verr *validation.Error) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(http.StatusUnprocessableEntity) })
		e.Field("message", func(e *jx.Encoder) { e.Str("validation failed") })
		e.Field("errors", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, f := range verr.Fields {
					e.Obj(func(e *jx.Encoder) {
						e.Field("field", func(e *jx.Encoder) { e.Str(f.Field) })
						e.Field("message", func(e *jx.Encoder) { e.Str(f.Message) })
					})
				}
			})
		})
	})
	writeRaw(w, http.StatusUnprocessableEntity, e.Bytes())
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// listResponse wraps a page of results.
type listResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

func newList[S any, T any](src []S, total int, conv func(S) T) listResponse[T] {
	out := listResponse[T]{Data: make([]T, len(src)), Total: total}
	for i, s := range src {
		out.Data[i] = conv(s)
	}
	return out
}

// decode reads a JSON body into dst and runs its validate tags.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return bodyError(err)
	}
	return validation.Struct(dst)
}

// bodyError turns a JSON decoding failure into a validation error.
func bodyError(err error) error {
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return validation.New(typeErr.Field, "has the wrong type")
	case errors.Is(err, io.EOF):
		return validation.New("body", "is required")
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return validation.New(field, "is not allowed")
	default:
		return validation.New("body", "must be valid JSON")
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, validation.New("id", "must be a positive integer")
	}
	return id, nil
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string, verr *validation.Error) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		verr.Add(name, "must be a non-negative integer")
		return 0
	}
	return v
}
