package middleware

import (
	"context"
	"net/http"

	"github.com/manageconsole/manage/cmd/manage/internal/access"
	"github.com/manageconsole/manage/cmd/manage/internal/views"
)

// AccessLookup resolves the role assignments a principal holds.
type AccessLookup interface {
	GetSingleUserService(ctx context.Context, userID, serviceID, organisationID, correlationID string) (*access.UserServiceContext, error)
}

// Renderer renders a page.
type Renderer interface {
	Render(w http.ResponseWriter, status int, name string, page views.Page) error
}

// ErrorHandler writes the response for an unexpected failure.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, _ error) {
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
