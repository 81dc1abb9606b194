package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Mearman/mcp-wayback-machine/internal/core/fetch"
	"github.com/Mearman/mcp-wayback-machine/internal/server/middleware"
	"github.com/Mearman/mcp-wayback-machine/internal/tools"
)

func TestFromErrorClassifies(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"validation", &tools.ValidationError{Tool: "save_url", Message: "/url: missing"}, CodeValidationFailed, http.StatusBadRequest},
		{"invalid input", fmt.Errorf("%w: limit too large", tools.ErrInvalidInput), CodeInvalidInput, http.StatusBadRequest},
		{"unknown tool", fmt.Errorf("%w: nope", tools.ErrUnknownTool), CodeNotFound, http.StatusNotFound},
		{"config", &fetch.ConfigInvalidError{Reason: "/backend: bad"}, CodeConfigInvalid, http.StatusBadRequest},
		{"timeout", &fetch.Error{Kind: fetch.KindTimeout, URL: "https://web.archive.org"}, CodeTimeout, http.StatusGatewayTimeout},
		{"status", &fetch.Error{Kind: fetch.KindHTTPStatus, StatusCode: 503}, CodeExternalService, http.StatusBadGateway},
		{"transport", &fetch.Error{Kind: fetch.KindTransport, Err: stderrors.New("refused")}, CodeExternalService, http.StatusBadGateway},
		{"other", stderrors.New("boom"), CodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			envelope := FromError(context.Background(), tc.err)
			require.Equal(t, tc.code, envelope.Code)
			require.Equal(t, tc.status, HTTPStatusFromCode(envelope.Code))
			require.NotEmpty(t, envelope.CorrelationID)
		})
	}
}

func TestRespondWithErrorUsesRequestID(t *testing.T) {
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		RespondWithError(w, r, fmt.Errorf("%w: delete_archive", tools.ErrUnknownTool))
	}))

	req := httptest.NewRequest(http.MethodPost, "/tools/delete_archive", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, CodeNotFound, body.Error.Code)
	require.Equal(t, "req-123", body.Error.RequestID)
}

func TestEnsureEnvelopeNil(t *testing.T) {
	envelope := EnsureEnvelope(nil)
	require.Equal(t, CodeInternal, envelope.Code)
}
