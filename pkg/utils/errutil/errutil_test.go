package errutil_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/standup/pkg/utils/errutil"
	"github.com/secmon-lab/standup/pkg/utils/logging"
)

func TestHandle(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.With(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

	gt.NoError(t, errutil.Handle(ctx, nil, "ignored"))
	gt.Number(t, buf.Len()).Equal(0)

	err := goerr.New("upstream failed", goerr.V("chat_id", "19:abc"))
	gt.Value(t, errutil.Handle(ctx, err, "fetch failed")).Equal(err)
	gt.String(t, buf.String()).Contains("fetch failed")
	gt.String(t, buf.String()).Contains("19:abc")
}

func TestHandleHTTP(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.With(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

	w := httptest.NewRecorder()
	errutil.HandleHTTP(ctx, w, goerr.New("boom"), errutil.ErrorResponse{
		Status: http.StatusInternalServerError,
		Kind:   "Server Error",
	})

	gt.Value(t, w.Code).Equal(http.StatusInternalServerError)
	gt.Value(t, w.Header().Get("Content-Type")).Equal("application/json")
	gt.String(t, w.Body.String()).Contains(`"error":"Server Error"`)
	gt.String(t, w.Body.String()).Contains(`"message":"boom"`)
	gt.String(t, buf.String()).Contains(`"status":500`)
}

func TestHandleHTTPKeepsMessage(t *testing.T) {
	w := httptest.NewRecorder()
	errutil.HandleHTTP(context.Background(), w, goerr.New("internal detail"), errutil.ErrorResponse{
		Status:  http.StatusBadRequest,
		Kind:    "Bad Request",
		Message: "chatId is required",
	})

	gt.Value(t, w.Code).Equal(http.StatusBadRequest)
	gt.String(t, w.Body.String()).Contains("chatId is required")
	gt.Bool(t, strings.Contains(w.Body.String(), "internal detail")).False()
}
