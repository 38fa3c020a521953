package httputil

import (
	"errors"
	"net/http"
	"testing"
)

func TestMockHTTPClient_QueuedResponses(t *testing.T) {
	m := NewMockHTTPClient().
		AddResponse(http.StatusAccepted, `{"ok":true}`).
		AddErrorResponse(errors.New("connection refused"))

	req, _ := http.NewRequest(http.MethodPost, "http://rower.local/api/control/start", nil)
	resp, err := m.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d", resp.StatusCode)
	}
	var body struct{ OK bool }
	if err := ReadJSON(resp, &body); err != nil || !body.OK {
		t.Errorf("ReadJSON = %v, %+v", err, body)
	}

	if _, err := m.Do(req); err == nil {
		t.Error("expected the queued transport error")
	}

	resp, err = m.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Errorf("exhausted queue should answer 200, got %v, %v", resp, err)
	}

	if m.RequestCount() != 3 {
		t.Errorf("RequestCount() = %d", m.RequestCount())
	}
	if m.GetRequest(0) != req || m.GetRequest(3) != nil {
		t.Error("GetRequest returned the wrong request")
	}
}

func TestReadJSON_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"json error", http.StatusBadRequest, `{"error":"unknown command \"row\""}`, `400 Bad Request: unknown command "row"`},
		{"plain error", http.StatusNotFound, "404 page not found\n", "404 Not Found: 404 page not found"},
		{"bad json", http.StatusOK, "{", "decode response: unexpected EOF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMockHTTPClient().AddResponse(tt.status, tt.body)
			req, _ := http.NewRequest(http.MethodGet, "http://rower.local/api/snapshot", nil)
			resp, _ := m.Do(req)
			var v map[string]any
			err := ReadJSON(resp, &v)
			if err == nil || err.Error() != tt.wantMsg {
				t.Errorf("ReadJSON error = %v, want %q", err, tt.wantMsg)
			}
		})
	}
}
