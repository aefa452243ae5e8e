package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/test", nil)
	handler(c)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return resp
}

func TestSuccess(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Success(c, map[string]string{"name": "test"})
	})

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := parseResponse(t, w)
	if resp.Code != 0 {
		t.Errorf("expected code 0, got %d", resp.Code)
	}
	if resp.Message != "ok" {
		t.Errorf("expected message 'ok', got %q", resp.Message)
	}
	if resp.Error != "" {
		t.Errorf("success should not carry an error kind, got %q", resp.Error)
	}
}

func TestCreated(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Created(c, map[string]int{"id": 1})
	})

	if w.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, w.Code)
	}

	resp := parseResponse(t, w)
	if resp.Code != 0 {
		t.Errorf("expected code 0, got %d", resp.Code)
	}
}

func TestNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	router := gin.New()
	router.DELETE("/thing", func(c *gin.Context) { NoContent(c) })
	req, _ := http.NewRequest("DELETE", "/thing", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", w.Body.String())
	}
}

func TestHelpers_StatusAndKind(t *testing.T) {
	tests := []struct {
		name   string
		call   func(c *gin.Context)
		status int
		kind   string
	}{
		{"bad request", func(c *gin.Context) { BadRequest(c, "invalid input") }, http.StatusBadRequest, KindValidationFailed},
		{"unauthorized", func(c *gin.Context) { Unauthorized(c, "token expired") }, http.StatusUnauthorized, KindUnauthenticated},
		{"forbidden", func(c *gin.Context) { Forbidden(c, "admin required") }, http.StatusForbidden, KindForbidden},
		{"not found", func(c *gin.Context) { NotFound(c, "resource not found") }, http.StatusNotFound, KindNotFound},
		{"too many", func(c *gin.Context) { TooManyRequests(c, "slow down") }, http.StatusTooManyRequests, KindTooManyRequests},
		{"server error", func(c *gin.Context) { ServerError(c, "internal error") }, http.StatusInternalServerError, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(tt.call)
			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
			resp := parseResponse(t, w)
			if resp.Code != tt.status {
				t.Errorf("expected code %d, got %d", tt.status, resp.Code)
			}
			if resp.Error != tt.kind {
				t.Errorf("expected kind %q, got %q", tt.kind, resp.Error)
			}
		})
	}
}

func TestError_WithAppError(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, NewConflict("already a member"))
	})

	if w.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, w.Code)
	}

	resp := parseResponse(t, w)
	if resp.Code != 409 {
		t.Errorf("expected code 409, got %d", resp.Code)
	}
	if resp.Error != KindConflict {
		t.Errorf("expected kind %q, got %q", KindConflict, resp.Error)
	}
	if resp.Message != "already a member" {
		t.Errorf("expected message 'already a member', got %q", resp.Message)
	}
}

func TestError_WithWrappedAppError(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, fmt.Errorf("loading task: %w", NewNotFound("task not found")))
	})

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestError_ValidationFields(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, NewValidationFailed([]FieldError{
			{Field: "title", Message: "is required"},
			{Field: "priority", Message: "must be one of LOW MEDIUM HIGH CRITICAL"},
		}))
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	resp := parseResponse(t, w)
	if len(resp.Errors) != 2 {
		t.Fatalf("expected 2 field errors, got %d", len(resp.Errors))
	}
	if resp.Errors[0].Field != "title" {
		t.Errorf("expected first field 'title', got %q", resp.Errors[0].Field)
	}
}

func TestError_WithGenericError(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, errors.New("dial tcp: connection refused"))
	})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}

	resp := parseResponse(t, w)
	if resp.Code != 500 {
		t.Errorf("expected code 500, got %d", resp.Code)
	}
	if resp.Message == "dial tcp: connection refused" {
		t.Error("internal error text should not be exposed")
	}
}

func TestAppError_ErrorInterface(t *testing.T) {
	err := NewNotFound("user not found")
	if err.Error() != "user not found" {
		t.Errorf("expected 'user not found', got %q", err.Error())
	}
}

func TestAppError_Is(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewForbidden("not the owner"))

	if !errors.Is(err, ErrForbidden) {
		t.Error("expected errors.Is to match ErrForbidden")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("forbidden error should not match ErrNotFound")
	}
}
