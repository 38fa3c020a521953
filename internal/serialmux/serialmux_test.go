package serialmux

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendCommand(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	require.NoError(t, mux.SendCommand("S"))
	require.NoError(t, mux.SendCommand("X\n"))
	assert.Equal(t, "S\nX\n", port.Written())

	port.WriteError = errors.New("unplugged")
	assert.Error(t, mux.SendCommand("S"))
}

func TestInitialize(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	require.NoError(t, mux.Initialize(5*time.Millisecond))
	assert.Equal(t, "X\nD=5000\nU=us\nS\n", port.Written())

	port.WriteError = errors.New("unplugged")
	err := mux.Initialize(time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"X"`)
}

func TestMonitor_FansOutLines(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	idA, a := mux.Subscribe()
	_, b := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	port.AddLines("12000us", "0.0115")
	for _, ch := range []chan string{a, b} {
		assert.Equal(t, "12000us", <-ch)
		assert.Equal(t, "0.0115", <-ch)
	}

	mux.Unsubscribe(idA)
	_, open := <-a
	assert.False(t, open, "unsubscribing closes the channel")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
}

func TestMonitor_ReturnsPortErrors(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	done := make(chan error, 1)
	go func() { done <- mux.Monitor(context.Background()) }()

	require.NoError(t, port.Close())
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrPortClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("Monitor did not return after the port closed")
	}
}

func TestClose_ClosesSubscribers(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	id, ch := mux.Subscribe()

	require.NoError(t, mux.Close())

	_, open := <-ch
	assert.False(t, open)
	mux.Unsubscribe(id) // already gone, must not panic
	assert.ErrorIs(t, mux.SendCommand("S"), ErrPortClosed)
}

func TestAdminRoutes_SendCommand(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	tests := []struct {
		name       string
		method     string
		command    string
		wantStatus int
	}{
		{"post", http.MethodPost, "D=4000", http.StatusOK},
		{"empty", http.MethodPost, "  ", http.StatusBadRequest},
		{"get", http.MethodGet, "S", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{"command": {tt.command}}
			req := httptest.NewRequest(tt.method, "/debug/send-command-api", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.RemoteAddr = "127.0.0.1:1234"
			rec := httptest.NewRecorder()

			httpMux.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
	assert.Equal(t, "D=4000\n", port.Written())
}

func TestParseImpulseLine(t *testing.T) {
	tests := []struct {
		line    string
		want    float64
		wantErr error
	}{
		{line: "0.012345", want: 0.012345},
		{line: "12345us", want: 0.012345},
		{line: " 8000 us \r", want: 0.008},
		{line: "# counter v2 ready", wantErr: ErrNotAnImpulse},
		{line: "", wantErr: ErrNotAnImpulse},
		{line: "fast"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseImpulseLine(tt.line)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.want == 0:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.InDelta(t, tt.want, got, 1e-12)
			}
		})
	}
}
