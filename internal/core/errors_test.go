package core

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestNewUpstreamError(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantStatus int
		wantInMsg  string
	}{
		{
			name:       "extracts provider error message",
			statusCode: 401,
			body:       `{"error":{"message":"Incorrect API key provided"}}`,
			wantStatus: 401,
			wantInMsg:  "Incorrect API key provided",
		},
		{
			name:       "keeps raw body when not structured",
			statusCode: 400,
			body:       `model not found`,
			wantStatus: 400,
			wantInMsg:  "model not found",
		},
		{
			name:       "server errors map to bad gateway",
			statusCode: 503,
			body:       `upstream overloaded`,
			wantStatus: http.StatusBadGateway,
			wantInMsg:  "upstream overloaded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewUpstreamError("openai", tt.statusCode, []byte(tt.body))
			if err.HTTPStatusCode() != tt.wantStatus {
				t.Errorf("status = %d, want %d", err.HTTPStatusCode(), tt.wantStatus)
			}
			if !strings.Contains(err.Message, tt.wantInMsg) {
				t.Errorf("message %q missing %q", err.Message, tt.wantInMsg)
			}
		})
	}
}

func TestProxyErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewUpstreamStreamError("gemini", cause)

	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause")
	}
	var pe *ProxyError
	if !errors.As(error(err), &pe) {
		t.Error("expected errors.As to find ProxyError")
	}
}

func TestProxyErrorToJSON(t *testing.T) {
	err := NewInvalidRequestError("model is required", nil)
	body := err.ToJSON()

	inner, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	if inner["type"] != ErrorTypeInvalidRequest {
		t.Errorf("type = %v", inner["type"])
	}
	if inner["message"] != "model is required" {
		t.Errorf("message = %v", inner["message"])
	}
}
