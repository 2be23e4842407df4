package middlewares

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-openapi/runtime/middleware/header"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jake-scott/reolink/internal/pkg/logging"
	"github.com/sirupsen/logrus"
)

// TxnIDHeader carries the transaction ID assigned to each request
const TxnIDHeader = "X-Txn-Id"

type responseWriterEx struct {
	http.ResponseWriter

	statusCode       int
	size             int
	logData          bool
	ctx              context.Context
	hasLoggedHeaders bool
	textual          bool
}

func newResponseWriterEx(ctx context.Context, logData bool, rw http.ResponseWriter) responseWriterEx {
	return responseWriterEx{
		ResponseWriter: rw,
		statusCode:     http.StatusOK,
		logData:        logData,
		ctx:            ctx,
	}
}

func (rw *responseWriterEx) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriterEx) Write(b []byte) (int, error) {
	if rw.logData && !rw.hasLoggedHeaders {
		logging.Logger(rw.ctx).Debugf("wrote headers: %+v", rw.ResponseWriter.Header())
		rw.textual = isTextual(rw.ResponseWriter.Header())
		rw.hasLoggedHeaders = true
	}

	size, err := rw.ResponseWriter.Write(b)
	rw.size += size

	if err == nil && rw.logData {
		// Snapshots and recordings are only logged by size
		if rw.textual {
			logging.Logger(rw.ctx).Debugf("wrote %d bytes: %s", size, b[:size])
		} else {
			logging.Logger(rw.ctx).Debugf("wrote %d bytes", size)
		}
	}
	return size, err
}

func isTextual(h http.Header) bool {
	mt, _ := header.ParseValueAndParams(h, "Content-Type")
	return strings.HasPrefix(mt, "text/") || mt == "application/json"
}

// Wrapper around an io.ReadCloser that logs every read as a string
type loggingReader struct {
	io.ReadCloser
	ctx context.Context
}

func newLoggingReader(ctx context.Context, rc io.ReadCloser) io.ReadCloser {
	return loggingReader{
		ReadCloser: rc,
		ctx:        ctx,
	}
}

func (lr loggingReader) Read(b []byte) (size int, err error) {
	size, err = lr.ReadCloser.Read(b)
	if size > 0 {
		logging.Logger(lr.ctx).Debugf("read %d bytes: --:--%s--:--", size, redactPasswords(string(b[:size])))
	}

	return size, err
}

// Request bodies may carry new account passwords.  Only string values are
// masked; a value cut off by the end of s is masked to the end.
func redactPasswords(s string) string {
	const key = `"password":`

	var out strings.Builder
	for {
		i := strings.Index(s, key)
		if i < 0 {
			out.WriteString(s)
			return out.String()
		}

		out.WriteString(s[:i+len(key)])
		s = s[i+len(key):]

		start := 0
		for start < len(s) && strings.IndexByte(" \t\r\n", s[start]) >= 0 {
			start++
		}
		if start == len(s) || s[start] != '"' {
			continue
		}

		end := closingQuote(s, start+1)
		out.WriteString(s[:start])
		if end < 0 {
			out.WriteString(`"xxxxx`)
			return out.String()
		}

		out.WriteString(`"xxxxx"`)
		s = s[end+1:]
	}
}

// closingQuote returns the index of the quote ending the JSON string whose
// contents start at from, or -1
func closingQuote(s string, from int) int {
	for i := from; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

type LoggingMw struct {
	logRequests bool
	next        http.Handler
}

// Called once
func NewLoggingMw(reqLogging bool) mux.MiddlewareFunc {
	// Called each request
	return func(next http.Handler) http.Handler {
		return NewLogging(reqLogging, next)
	}
}

// Called by the router for each request
func NewLogging(reqLogging bool, next http.Handler) *LoggingMw {
	return &LoggingMw{next: next, logRequests: reqLogging}
}

func (mw *LoggingMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	txnID := uuid.New().String()
	startTime := time.Now()

	// Set the output header now before something writes any response body
	rw.Header().Set(TxnIDHeader, txnID)

	// Save the transaction ID to the request context; the camera client logs
	// with it too
	r = r.WithContext(logging.WithTxnID(r.Context(), txnID))

	// Replace the Body reader with a logging wrapper if we're logging requests
	if mw.logRequests {
		logging.Logger(r.Context()).Debugf("request headers: %+v", r.Header)
		r.Body = newLoggingReader(r.Context(), r.Body)
	}

	// wrap the request writer so we can capture the status code and size
	rwex := newResponseWriterEx(r.Context(), mw.logRequests, rw)
	mw.next.ServeHTTP(&rwex, r)

	logging.Logger(r.Context()).WithFields(
		logrus.Fields{
			"entrytype": "audit",
			"status":    rwex.statusCode,
			"method":    r.Method,
			"proto":     r.Proto,
			"host":      r.Host,
			"remote":    r.RemoteAddr,
			"start":     startTime.Format(time.RFC3339Nano),
			"duration":  time.Since(startTime),
			"path":      r.URL.String(),
			"size":      rwex.size,
		},
	).Info(http.StatusText(rwex.statusCode))
}
