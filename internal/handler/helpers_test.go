package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Details []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"details"`
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload interface{}) (*http.Response, envelope) {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, ok := payload.(string)
		if !ok {
			encoded, err := json.Marshal(payload)
			require.NoError(t, err)
			raw = string(encoded)
		}
		body = bytes.NewReader([]byte(raw))
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var decoded envelope
	decodeResponse(t, resp, &decoded)
	return resp, decoded
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}
