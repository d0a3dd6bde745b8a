package constraints

import (
	"errors"
	"net/http"
	"strings"

	"github.com/digitalocean/godo"
	"github.com/docker/docker/errdefs"
)

// statusCoder matches SDK errors that expose the HTTP status they came from.
type statusCoder interface {
	HTTPStatusCode() int
}

var readOnlyPhrases = []string{"read-only", "read only", "readonly", "403", "forbidden"}

// isReadOnlySignal reports whether err suggests the credential may read but
// not write. Each SDK reports this differently, so typed checks come first
// and message matching is the fallback.
func isReadOnlySignal(err error) bool {
	if err == nil {
		return false
	}
	if errdefs.IsForbidden(err) {
		return true
	}
	var doErr *godo.ErrorResponse
	if errors.As(err, &doErr) && doErr.Response != nil && doErr.Response.StatusCode == http.StatusForbidden {
		return true
	}
	var sc statusCoder
	if errors.As(err, &sc) && sc.HTTPStatusCode() == http.StatusForbidden {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range readOnlyPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
