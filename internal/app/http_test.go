package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var parsed map[string]any
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("parse response %q: %v", rr.Body.String(), err)
		}
	}
	return rr, parsed
}

func signUpOverHTTP(t *testing.T, handler http.Handler) (token, userID string) {
	t.Helper()
	rr, resp := doJSON(t, handler, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email":       "reader@example.com",
		"password":    "long-enough-pw",
		"displayName": "Reader",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("signup status %d: %v", rr.Code, resp)
	}
	return resp["token"].(string), resp["userId"].(string)
}

func TestHealthEndpoint(t *testing.T) {
	svc := newTestService(newFakeStore())
	handler := NewHTTPServer(svc, "*").Handler()

	rr, resp := doJSON(t, handler, http.MethodGet, "/api/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if resp["ok"] != true {
		t.Errorf("expected ok=true, got %v", resp["ok"])
	}
}

func TestReadyEndpointDatabaseDown(t *testing.T) {
	fs := newFakeStore()
	fs.pingFn = func(context.Context) error { return errors.New("connection refused") }
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()

	rr, resp := doJSON(t, handler, http.MethodGet, "/api/ready", "", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d", rr.Code)
	}
	if resp["ok"] != false {
		t.Errorf("expected ok=false, got %v", resp["ok"])
	}
}

func TestRequireSessionRejectsMissingToken(t *testing.T) {
	svc := newTestService(newFakeStore())
	handler := NewHTTPServer(svc, "*").Handler()

	rr, _ := doJSON(t, handler, http.MethodGet, "/api/books", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestAuthFlowOverHTTP(t *testing.T) {
	svc := newTestService(newFakeStore())
	handler := NewHTTPServer(svc, "*").Handler()

	token, userID := signUpOverHTTP(t, handler)
	if userID == "" {
		t.Fatal("missing user id")
	}

	rr, resp := doJSON(t, handler, http.MethodGet, "/api/session", token, nil)
	if rr.Code != http.StatusOK || resp["authenticated"] != true {
		t.Fatalf("session check failed: %d %v", rr.Code, resp)
	}

	rr, resp = doJSON(t, handler, http.MethodPost, "/api/auth/signin", "", map[string]any{
		"email":    "reader@example.com",
		"password": "wrong",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d %v", rr.Code, resp)
	}
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	svc := newTestService(newFakeStore())
	handler := NewHTTPServer(svc, "*").Handler()

	token, _ := signUpOverHTTP(t, handler)

	rr, _ := doJSON(t, handler, http.MethodPost, "/api/session/logout", token, map[string]any{})
	if rr.Code != http.StatusOK {
		t.Fatalf("logout status %d", rr.Code)
	}

	rr, _ = doJSON(t, handler, http.MethodGet, "/api/books", token, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d", rr.Code)
	}
}

func TestStudyFlowOverHTTP(t *testing.T) {
	fs := newFakeStore()
	fs.addVerse("john-3-16", "john-3", 16, "For God so loved the world")
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()

	token, _ := signUpOverHTTP(t, handler)

	rr, resp := doJSON(t, handler, http.MethodPost, "/api/study", token, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("open study: %d %v", rr.Code, resp)
	}
	sessionID := resp["sessionId"].(string)

	rr, resp = doJSON(t, handler, http.MethodPost, "/api/study/"+sessionID+"/highlights", token, map[string]any{
		"verseId":    "john-3-16",
		"startIndex": 2,
		"endIndex":   8,
		"color":      "#FFEB3B",
	})
	if rr.Code != http.StatusOK || resp["created"] != true {
		t.Fatalf("create highlight: %d %v", rr.Code, resp)
	}

	// Zero-length selection is a no-op, not an error.
	rr, resp = doJSON(t, handler, http.MethodPost, "/api/study/"+sessionID+"/highlights", token, map[string]any{
		"verseId":    "john-3-16",
		"startIndex": 4,
		"endIndex":   4,
		"color":      "#FFEB3B",
	})
	if rr.Code != http.StatusOK || resp["created"] != false {
		t.Fatalf("zero-length selection: %d %v", rr.Code, resp)
	}

	// Selections cannot run past the end of the verse text.
	rr, resp = doJSON(t, handler, http.MethodPost, "/api/study/"+sessionID+"/highlights", token, map[string]any{
		"verseId":    "john-3-16",
		"startIndex": 2,
		"endIndex":   99,
		"color":      "#FFEB3B",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("out-of-range selection: %d %v", rr.Code, resp)
	}

	rr, resp = doJSON(t, handler, http.MethodPost, "/api/study/"+sessionID+"/sync", token, nil)
	if rr.Code != http.StatusOK || resp["needsSync"] != false {
		t.Fatalf("sync: %d %v", rr.Code, resp)
	}

	rr, resp = doJSON(t, handler, http.MethodGet, "/api/study/"+sessionID+"/state", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("state: %d", rr.Code)
	}
	if resp["needsSync"] != false || resp["syncing"] != false {
		t.Errorf("unexpected flags: %v", resp)
	}

	rr, _ = doJSON(t, handler, http.MethodDelete, "/api/study/"+sessionID, token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("close: %d", rr.Code)
	}

	rr, _ = doJSON(t, handler, http.MethodGet, "/api/study/"+sessionID+"/state", token, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after close, got %d", rr.Code)
	}
}

func TestStudyInvalidColorOverHTTP(t *testing.T) {
	svc := newTestService(newFakeStore())
	handler := NewHTTPServer(svc, "*").Handler()

	token, _ := signUpOverHTTP(t, handler)

	rr, resp := doJSON(t, handler, http.MethodPost, "/api/study", token, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("open study: %d", rr.Code)
	}
	sessionID := resp["sessionId"].(string)

	rr, resp = doJSON(t, handler, http.MethodPost, "/api/study/"+sessionID+"/highlights", token, map[string]any{
		"verseId":    "v1",
		"startIndex": 0,
		"endIndex":   4,
		"color":      "rebeccapurple",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %v", rr.Code, resp)
	}
}

func TestSearchUnconfiguredOverHTTP(t *testing.T) {
	svc := newTestService(newFakeStore())
	handler := NewHTTPServer(svc, "*").Handler()

	token, _ := signUpOverHTTP(t, handler)

	rr, resp := doJSON(t, handler, http.MethodGet, "/api/search?q=shepherd", token, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d %v", rr.Code, resp)
	}
}

func TestNotesOverHTTP(t *testing.T) {
	fs := newFakeStore()
	fs.addVerse("v1", "c1", 1, "In the beginning")
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()

	token, _ := signUpOverHTTP(t, handler)

	rr, resp := doJSON(t, handler, http.MethodPost, "/api/notes", token, map[string]any{
		"verseId": "v1",
		"content": "cross reference",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create note: %d %v", rr.Code, resp)
	}
	noteID := resp["id"].(string)

	rr, _ = doJSON(t, handler, http.MethodPut, "/api/notes/"+noteID, token, map[string]any{
		"content": "updated",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update note: %d", rr.Code)
	}

	rr, resp = doJSON(t, handler, http.MethodGet, "/api/notes", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list notes: %d", rr.Code)
	}
	notes := resp["notes"].([]any)
	if len(notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(notes))
	}

	rr, _ = doJSON(t, handler, http.MethodDelete, "/api/notes/"+noteID, token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete note: %d", rr.Code)
	}

	// Note creation against an unknown verse is a 404.
	rr, _ = doJSON(t, handler, http.MethodPost, "/api/notes", token, map[string]any{
		"verseId": "missing",
		"content": "orphan",
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown verse, got %d", rr.Code)
	}
}

func TestChapterAndVerseListingOverHTTP(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	handler := NewHTTPServer(svc, "*").Handler()

	token, _ := signUpOverHTTP(t, handler)

	rr, resp := doJSON(t, handler, http.MethodGet, "/api/books", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("books: %d", rr.Code)
	}
	if len(resp["books"].([]any)) == 0 {
		t.Fatal("expected seeded books")
	}

	rr, resp = doJSON(t, handler, http.MethodGet, "/api/books/john/chapters", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("chapters: %d", rr.Code)
	}
	chapters := resp["chapters"].([]any)
	if len(chapters) != 1 {
		t.Fatalf("expected 1 chapter of John, got %d", len(chapters))
	}

	rr, resp = doJSON(t, handler, http.MethodGet, "/api/chapters/john-3/verses", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("verses: %d", rr.Code)
	}
	if len(resp["verses"].([]any)) != 4 {
		t.Fatalf("expected 4 seeded verses, got %d", len(resp["verses"].([]any)))
	}

	rr, _ = doJSON(t, handler, http.MethodGet, "/api/books/revelation/chapters", token, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown book, got %d", rr.Code)
	}
}
