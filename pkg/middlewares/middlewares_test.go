package middlewares

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jake-scott/reolink/internal/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelation(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		seen, _ = logging.Logger(r.Context()).Data["correlationid"].(string)
	})
	h := NewCorrelation("", next)

	tests := []struct {
		name string
		id   string
		want string
	}{
		{"valid", "req-1234_ab", "req-1234_ab"},
		{"invalid", "<script>", badCorrelationID},
		{"missing", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/devinfo", nil)
			if tt.id != "" {
				req.Header.Set(DefaultCorrelationHeader, tt.id)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Header().Get(DefaultCorrelationHeader))
			assert.Equal(t, tt.want, seen)
		})
	}
}

func TestLoggingSetsTxnID(t *testing.T) {
	var txnID string
	next := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		txnID, _ = logging.TxnID(r.Context())

		body, err := ioutil.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, `{"password":"hunter22"}`, string(body))

		rw.Header().Set("Content-Type", "image/jpeg")
		rw.WriteHeader(http.StatusCreated)
		_, _ = rw.Write([]byte{0xff, 0xd8, 0xff})
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/snapshot/0", strings.NewReader(`{"password":"hunter22"}`))
	NewLogging(true, next).ServeHTTP(rec, req)

	require.NotEmpty(t, txnID)
	assert.Equal(t, txnID, rec.Header().Get(TxnIDHeader))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 3, rec.Body.Len())
}

func TestRedactPasswords(t *testing.T) {
	assert.Equal(t,
		`{"User":{"userName":"bob","password":"xxxxx","level":"guest"}}`,
		redactPasswords(`{"User":{"userName":"bob","password":"s3cr3t","level":"guest"}}`))
	assert.Equal(t, `{"password": "xxxxx"}`, redactPasswords(`{"password": "a"}`))
	assert.Equal(t, `{"password":`, redactPasswords(`{"password":`))
	assert.Equal(t, `no secrets`, redactPasswords(`no secrets`))
}

func TestRedactPasswordsEscapes(t *testing.T) {
	assert.Equal(t,
		`{"password":"xxxxx","level":"admin"}`,
		redactPasswords(`{"password":"pa\"ss-word","level":"admin"}`))
	assert.Equal(t,
		`{"password":"xxxxx","level":"admin"}`,
		redactPasswords(`{"password":"back\\","level":"admin"}`))

	// Non-string values are left alone rather than masking the next field
	assert.Equal(t,
		`{"password":null,"userName":"bob"}`,
		redactPasswords(`{"password":null,"userName":"bob"}`))

	// A chunk ending inside the value leaks nothing
	assert.Equal(t, `{"password":"xxxxx`, redactPasswords(`{"password":"hunter`))
}

func TestRecovery(t *testing.T) {
	next := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		panic("camera exploded")
	})

	rec := httptest.NewRecorder()
	NewRecovery(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, rec.Body.String())
}

func TestCors(t *testing.T) {
	next := http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
	})
	h := NewCors(DefaultCorsOptions([]string{"https://dashboard.local"}), next)

	req := httptest.NewRequest(http.MethodGet, "/devinfo", nil)
	req.Header.Set("Origin", "https://dashboard.local")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://dashboard.local", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/devinfo", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
