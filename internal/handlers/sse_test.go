package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskflow/internal/services"
)

func TestSSE_RequiresToken(t *testing.T) {
	db := newTestDB(t)
	auth := services.NewAuthService(db, nil)
	h := NewSSEHandler(services.NewEventHub(), services.NewAccessService(db), auth)

	r := gin.New()
	r.GET("/events/tasks", h.StreamTaskEvents)

	for _, path := range []string{"/events/tasks", "/events/tasks?token=not-a-jwt"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", path, w.Code)
		}
	}
}

func TestSSE_ResolveUserFromQueryToken(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register("alice@example.com", "Alice Smith")

	auth := services.NewAuthService(env.db, nil)
	h := NewSSEHandler(services.NewEventHub(), services.NewAccessService(env.db), auth)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/events/tasks?token="+alice.Token, nil)

	id, ok := h.resolveUser(c)
	if !ok || id != alice.ID {
		t.Errorf("resolveUser() = %d, %v; want %d, true", id, ok, alice.ID)
	}
}
