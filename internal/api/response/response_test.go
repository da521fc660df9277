package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Soba101/FluxADM/internal/api/response"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestSuccessEnvelopes(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
		wantKey    string
		wantValue  string
	}{
		{
			name:       "JSON wraps a change request",
			write:      func(w http.ResponseWriter) { response.JSON(w, map[string]string{"cr_number": "CR-2026-0001"}) },
			wantStatus: http.StatusOK,
			wantKey:    "cr_number",
			wantValue:  "CR-2026-0001",
		},
		{
			name:       "Created wraps a provisioned key",
			write:      func(w http.ResponseWriter) { response.Created(w, map[string]string{"key_prefix": "fx_abcd12"}) },
			wantStatus: http.StatusCreated,
			wantKey:    "key_prefix",
			wantValue:  "fx_abcd12",
		},
		{
			name:       "Accepted wraps an enrichment job",
			write:      func(w http.ResponseWriter) { response.Accepted(w, map[string]string{"status": "queued"}) },
			wantStatus: http.StatusAccepted,
			wantKey:    "status",
			wantValue:  "queued",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decode(t, w)
			data := body["data"].(map[string]any)
			assert.Equal(t, tt.wantValue, data[tt.wantKey])

			// Single-object envelopes carry no pagination block.
			_, hasMeta := body["meta"]
			assert.False(t, hasMeta)
		})
	}
}

func TestCollection(t *testing.T) {
	w := httptest.NewRecorder()
	crs := []map[string]string{{"cr_number": "CR-2026-0001"}, {"cr_number": "CR-2026-0002"}}
	meta := response.PaginationMeta{Page: 1, Limit: 20, Total: 50, HasNext: true}

	response.Collection(w, crs, meta)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)

	data := body["data"].([]any)
	assert.Len(t, data, 2)

	m := body["meta"].(map[string]any)
	assert.Equal(t, float64(1), m["page"])
	assert.Equal(t, float64(20), m["limit"])
	assert.Equal(t, float64(50), m["total"])
	assert.Equal(t, true, m["has_next"])
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid params", map[string][]string{
		"document_text": {"document_text is required"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)

	errObj := body["error"].(map[string]any)
	assert.Equal(t, "INVALID_REQUEST", errObj["code"])
	assert.Equal(t, "Invalid params", errObj["message"])
	assert.NotNil(t, errObj["details"])

	// Error envelopes never carry a data block.
	_, hasData := body["data"]
	assert.False(t, hasData)
}

func TestError_NoDetails(t *testing.T) {
	w := httptest.NewRecorder()
	response.Error(w, http.StatusNotFound, "CR_NOT_FOUND", "Change request not found", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decode(t, w)

	errObj := body["error"].(map[string]any)
	assert.Equal(t, "CR_NOT_FOUND", errObj["code"])
	_, hasDetails := errObj["details"]
	assert.False(t, hasDetails)
}

func TestNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	response.NoContent(w)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.Bytes())
}
