package httpapi

import (
	"context"

	"github.com/go-chi/chi/v5"
)

// newChiContextWithID builds a context carrying a chi route context with
// the "id" URL param set, for exercising handlers without a full router.
func newChiContextWithID(id string) context.Context {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return context.WithValue(context.Background(), chi.RouteCtxKey, rctx)
}
