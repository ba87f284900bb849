package testutil

import (
	"net/http"

	"lockmint/pkg/domain"
	"lockmint/pkg/requestcontext"
)

// WithActor adds a caller address to the request context.
// This simulates what the auth middleware would do for authenticated requests.
func WithActor(req *http.Request, actor domain.Address) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}
