package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSPAHandlerFallsBackToIndex(t *testing.T) {
	h := SPAHandler()

	for _, path := range []string{"/", "/chat/history"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s: expected 200, got %d", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), "<title>Cosmic Guide</title>") {
			t.Fatalf("GET %s: expected index.html", path)
		}
	}
}
