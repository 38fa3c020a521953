package testutil

import (
	"fmt"
	"net/http"
	"sync"
	"testing"
)

func TestLoopbackServe(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"remote":%q,"method":%q}`, r.RemoteAddr, r.Method)
	})

	rec := Serve(h, LoopbackRequest(http.MethodPost, "/api/control/start", nil))
	AssertStatusCode(t, rec.Code, http.StatusOK)

	got := DecodeJSON[map[string]string](t, rec)
	if got["remote"] != "127.0.0.1:1234" || got["method"] != http.MethodPost {
		t.Errorf("handler saw %v", got)
	}
}

func TestSyncBuffer(t *testing.T) {
	var b SyncBuffer
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Fprint(&b, "x")
		}()
	}
	wg.Wait()
	if got := b.String(); got != "xxxxxxxx" {
		t.Errorf("String() = %q", got)
	}
}
