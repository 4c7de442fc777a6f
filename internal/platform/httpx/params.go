package httpx

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/storeops/storeops/internal/shared"
)

// IDParam parses a positive int64 chi URL parameter.
func IDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", shared.ErrValidation, name, raw)
	}
	return id, nil
}

// QueryInt64 parses an optional int64 query value, returning 0 when absent.
func QueryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", shared.ErrValidation, name, raw)
	}
	return v, nil
}

// PageFromQuery reads offset and limit query values.
func PageFromQuery(r *http.Request) (shared.Page, error) {
	offset, err := QueryInt64(r, "offset")
	if err != nil {
		return shared.Page{}, err
	}
	limit, err := QueryInt64(r, "limit")
	if err != nil {
		return shared.Page{}, err
	}
	return shared.Page{Offset: int(offset), Limit: int(limit)}.Normalize(), nil
}
