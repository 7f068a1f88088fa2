package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/standup/pkg/domain/model"
	"github.com/secmon-lab/standup/pkg/service/graph"
	"github.com/secmon-lab/standup/pkg/usecase"
	"github.com/secmon-lab/standup/pkg/utils/errutil"
	"github.com/secmon-lab/standup/pkg/utils/safe"
)

// Error kinds of the JSON error body
const (
	KindBadRequest       = "Bad Request"
	KindUnauthorized     = "Unauthorized"
	KindNotFound         = "Not Found"
	KindAPIError         = "API Error"
	KindNetworkError     = "Network Error"
	KindContractViolated = "Upstream Contract Violation"
	KindServerError      = "Server Error"
)

var errBadRequest = goerr.New("bad request")

// errorResponseFor maps an error to its HTTP status and JSON body
func errorResponseFor(err error) errutil.ErrorResponse {
	var (
		apiErr *graph.APIError
		urlErr *url.Error
		netErr net.Error
	)

	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, usecase.ErrMissingChatID),
		errors.Is(err, usecase.ErrMissingToken),
		errors.Is(err, usecase.ErrInvalidInput),
		errors.Is(err, graph.ErrInvalidInput),
		errors.Is(err, model.ErrInvalidDateRange):
		return errutil.ErrorResponse{Status: http.StatusBadRequest, Kind: KindBadRequest, Message: err.Error()}

	case errors.Is(err, usecase.ErrReportNotFound):
		return errutil.ErrorResponse{Status: http.StatusNotFound, Kind: KindNotFound, Message: "report not found"}

	case errors.Is(err, usecase.ErrUpstreamContract):
		return errutil.ErrorResponse{Status: http.StatusBadGateway, Kind: KindContractViolated, Message: "analysis result did not match the expected report format"}

	case errors.As(err, &apiErr):
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error()
		}
		status := apiErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		return errutil.ErrorResponse{Status: status, Kind: KindAPIError, Message: msg}

	case errors.As(err, &urlErr), errors.As(err, &netErr):
		return errutil.ErrorResponse{Status: http.StatusServiceUnavailable, Kind: KindNetworkError, Message: "Unable to reach the API service"}

	default:
		return errutil.ErrorResponse{Status: http.StatusInternalServerError, Kind: KindServerError, Message: "internal server error"}
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	errutil.HandleHTTP(ctx, w, err, errorResponseFor(err))
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.WriteJSON(r.Context(), w, v)
}
