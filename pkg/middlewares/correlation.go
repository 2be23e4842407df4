package middlewares

import (
	"net/http"
	"regexp"

	"github.com/gorilla/mux"
	"github.com/jake-scott/reolink/internal/pkg/logging"
)

// DefaultCorrelationHeader is the header used when none is configured
const DefaultCorrelationHeader = "X-Correlation-Id"

const badCorrelationID = "<Bad_Correlation_Id>"

var correlationIDRegexp = regexp.MustCompile(`^[\w.-]{3,64}$`)

// CorrelationMw echoes the caller's correlation ID back in the response and
// makes it available to the request logger
type CorrelationMw struct {
	headerName string
	next       http.Handler
}

func NewCorrelationMw(headerName string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return NewCorrelation(headerName, next)
	}
}

func NewCorrelation(headerName string, next http.Handler) *CorrelationMw {
	if headerName == "" {
		headerName = DefaultCorrelationHeader
	}
	return &CorrelationMw{headerName: http.CanonicalHeaderKey(headerName), next: next}
}

func (mw *CorrelationMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if id, ok := mw.validateID(r); ok {
		rw.Header().Set(mw.headerName, id)
		r = r.WithContext(logging.WithCorrelationID(r.Context(), id))
	}

	mw.next.ServeHTTP(rw, r)
}

// Garbage IDs are replaced rather than dropped so the caller can tell
func (mw *CorrelationMw) validateID(r *http.Request) (string, bool) {
	id := r.Header.Get(mw.headerName)
	if id == "" {
		return "", false
	}

	if correlationIDRegexp.MatchString(id) {
		return id, true
	}

	return badCorrelationID, true
}
