package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	oaerrors "github.com/go-openapi/errors"
	"github.com/go-openapi/runtime/middleware/header"
	"github.com/jake-scott/reolink/internal/pkg/logging"
	"github.com/jake-scott/reolink/pkg/reolink"
	"github.com/pkg/errors"
)

// 100kb max body
const maxBodySize = 100 * 1024

type errorResponse struct {
	Error   string `json:"error"`
	RspCode *int   `json:"rspCode,omitempty"`
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Header.Get("Content-Type") != "" {
		value, _ := header.ParseValueAndParams(r.Header, "Content-Type")
		if value != "application/json" {
			return fmt.Errorf("expected JSON request, got %s", value)
		}
	}

	reader := http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("request body must only contain a single JSON object")
	}

	return nil
}

func sendJSONResponse(w http.ResponseWriter, r *http.Request, status int, d interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	if err := enc.Encode(d); err != nil {
		logging.Logger(r.Context()).WithError(err).Error("sending json response")
	}
}

func sendBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	sendJSONResponse(w, r, http.StatusBadRequest, errorResponse{Error: msg})
}

// statusForError maps a camera failure to the gateway's response
func statusForError(err error) (int, errorResponse) {
	var (
		validationErr *oaerrors.CompositeError
		apiErr        *reolink.APIError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, errorResponse{Error: validationErr.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorResponse{Error: "device timed out"}
	case errors.As(err, &apiErr):
		code := apiErr.Err.RspCode
		return http.StatusBadGateway, errorResponse{Error: apiErr.Err.Detail, RspCode: &code}
	case errors.Is(err, reolink.ErrClosed):
		return http.StatusServiceUnavailable, errorResponse{Error: "shutting down"}
	}

	return http.StatusBadGateway, errorResponse{Error: "Down-stream API error"}
}

func sendCameraError(w http.ResponseWriter, r *http.Request, err error) {
	logging.Logger(r.Context()).WithError(err).Error("querying the device")

	status, body := statusForError(err)
	sendJSONResponse(w, r, status, body)
}
