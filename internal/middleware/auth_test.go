package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mmeshcher/plantshop/internal/model"
	"github.com/mmeshcher/plantshop/internal/repository"
)

func authCookie(t *testing.T, m *AuthMiddleware, id uuid.UUID) *http.Cookie {
	t.Helper()

	w := httptest.NewRecorder()
	m.SetAuthCookie(w, id)
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("no cookies set by SetAuthCookie")
	}
	return cookies[0]
}

func TestAuthMiddleware_WithValidCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	want := uuid.New()

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		id, ok := GetUserIDFromContext(r.Context())
		if !ok {
			t.Fatalf("user id not in context")
		}
		if id != want {
			t.Fatalf("user id from context = %s, want %s", id, want)
		}
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.AddCookie(authCookie(t, m, want))

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_WithoutCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/protected", nil)

	m.Middleware(next).ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_RejectsForeignSignature(t *testing.T) {
	issuer := NewAuthMiddleware("other-secret")
	m := NewAuthMiddleware("test-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{name: "other secret", cookie: authCookie(t, issuer, uuid.New())},
		{name: "no signature", cookie: &http.Cookie{Name: authCookieName, Value: uuid.NewString()}},
		{name: "garbage", cookie: &http.Cookie{Name: authCookieName, Value: "a.b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/protected", nil)
			r.AddCookie(tt.cookie)

			m.Middleware(next).ServeHTTP(w, r)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

type stubUsers map[uuid.UUID]*model.User

func (s stubUsers) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := s[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

type failingUsers struct{}

func (failingUsers) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return nil, errors.New("db down")
}

func TestRequireRole(t *testing.T) {
	admin := &model.User{ID: uuid.New(), Role: model.RoleAdmin}
	buyer := &model.User{ID: uuid.New(), Role: model.RoleBuyer}
	users := stubUsers{admin.ID: admin, buyer.ID: buyer}

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, found := UserFromContext(r.Context())
		if !found {
			t.Fatalf("user not in context")
		}
		_, _ = w.Write([]byte(u.Role))
	})

	tests := []struct {
		name   string
		lookup UserLookup
		userID *uuid.UUID
		roles  []model.Role
		want   int
	}{
		{name: "admin allowed", lookup: users, userID: &admin.ID, roles: []model.Role{model.RoleAdmin}, want: http.StatusOK},
		{name: "buyer forbidden", lookup: users, userID: &buyer.ID, roles: []model.Role{model.RoleAdmin}, want: http.StatusForbidden},
		{name: "any role", lookup: users, userID: &buyer.ID, want: http.StatusOK},
		{name: "unknown user", lookup: users, userID: ptr(uuid.New()), want: http.StatusUnauthorized},
		{name: "no auth", lookup: users, want: http.StatusUnauthorized},
		{name: "lookup failure", lookup: failingUsers{}, userID: &admin.ID, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.userID != nil {
				r = r.WithContext(context.WithValue(r.Context(), userIDKey, *tt.userID))
			}
			w := httptest.NewRecorder()

			RequireRole(tt.lookup, tt.roles...)(ok).ServeHTTP(w, r)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestLogger_RecordsStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := Logger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/pot", nil))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, int64(len("short and stout")), fields["size"])
}
