package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/composables"
)

func TestWithLogger_PropagatesRequestIDAndLogger(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()
	var seen *logrus.Entry
	h := WithLogger(logger, DefaultLoggerOptions())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = composables.UseLogger(r.Context())
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(body), "body is still readable after logging")
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/x", strings.NewReader(`{"a":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-Id"))
	require.NotNil(t, seen)
	assert.Equal(t, "req-1", seen.Data["request-id"])

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "request completed", last.Message)
	assert.Equal(t, http.StatusCreated, last.Data["status-code"])
}

func TestWithLogger_RecoversPanicsAsJSON(t *testing.T) {
	t.Parallel()

	logger, _ := test.NewNullLogger()
	h := WithLogger(logger, DefaultLoggerOptions())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/apps", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_SERVER_ERROR")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "INTERNAL_SERVER_ERROR")
}

func TestResponseCaptureWriter_LimitsCapture(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w := wrapResponseWriter(rec, 4)
	_, err := w.Write([]byte("abcdefgh"))
	require.NoError(t, err)
	assert.Equal(t, "abcd", w.body.String())
	assert.Equal(t, "abcdefgh", rec.Body.String())
	assert.Equal(t, http.StatusOK, w.Status())
	assert.True(t, bytes.Equal([]byte("abcdefgh"), rec.Body.Bytes()))
}
