package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	libJWT "github.com/golang-jwt/jwt/v5"
	"github.com/shandysiswandi/govault/internal/pkg/goerror"
	"github.com/shandysiswandi/govault/internal/pkg/instrument"
	"github.com/shandysiswandi/govault/internal/pkg/jwt"
	"github.com/shandysiswandi/govault/internal/pkg/uid"
)

type stubJWT struct {
	tokens map[string]jwt.Claims
}

func (s *stubJWT) Generate(jwt.Subject) (jwt.Token, error) { return jwt.Token{}, nil }

func (s *stubJWT) Verify(token string) (jwt.Claims, error) {
	c, ok := s.tokens[token]
	if !ok {
		return jwt.Claims{}, jwt.ErrInvalidToken
	}
	return c, nil
}

type stubRevocation struct {
	revoked map[string]bool
	err     error
}

func (s *stubRevocation) IsRevoked(_ context.Context, id string) (bool, error) {
	return s.revoked[id], s.err
}

func claims(id string, uid int64, role string) jwt.Claims {
	return jwt.Claims{RegisteredClaims: libJWT.RegisteredClaims{ID: id}, UserID: uid, Role: role}
}

func newTestRouter(t *testing.T, rev RevocationChecker) *Router {
	t.Helper()

	m, err := model.NewModelFromString(`
[request_definition]
r = sub, obj, act
[policy_definition]
p = sub, obj, act
[role_definition]
g = _, _
[policy_effect]
e = some(where (p.eft == allow))
[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`)
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		t.Fatalf("enforcer: %v", err)
	}
	if _, err := e.AddPolicy("admin", "stepup.challenges", "read"); err != nil {
		t.Fatalf("AddPolicy: %v", err)
	}

	return NewRouter(Config{
		UUID:       uid.NewUUID(),
		Instrument: instrument.NewNoop(),
		JWT: &stubJWT{tokens: map[string]jwt.Claims{
			"user-token":    claims("j1", 1, "user"),
			"admin-token":   claims("j2", 2, "admin"),
			"revoked-token": claims("j3", 3, "user"),
		}},
		Revocation: rev,
		Enforcer:   e,
	})
}

func doRequest(h http.Handler, method, path, token string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestRouter_Authentication(t *testing.T) {
	r := newTestRouter(t, &stubRevocation{revoked: map[string]bool{"j3": true}})

	var seen *jwt.Claims
	r.GET("/api/v1/identity/profile", func(req *Request) (any, error) {
		seen = jwt.GetAuth(req.Context())
		return map[string]string{"ok": "yes"}, nil
	})
	r.POST("/api/v1/2fa/verify", func(req *Request) (any, error) {
		seen = jwt.GetAuth(req.Context())
		return map[string]bool{"success": true}, nil
	})

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
		wantAuth   bool
	}{
		{name: "private without token", method: http.MethodGet, path: "/api/v1/identity/profile", wantStatus: http.StatusUnauthorized},
		{name: "private with bad token", method: http.MethodGet, path: "/api/v1/identity/profile", token: "nope", wantStatus: http.StatusUnauthorized},
		{name: "private with revoked token", method: http.MethodGet, path: "/api/v1/identity/profile", token: "revoked-token", wantStatus: http.StatusUnauthorized},
		{name: "private with token", method: http.MethodGet, path: "/api/v1/identity/profile", token: "user-token", wantStatus: http.StatusOK, wantAuth: true},
		{name: "public without token", method: http.MethodPost, path: "/api/v1/2fa/verify", wantStatus: http.StatusOK},
		{name: "public with bad token", method: http.MethodPost, path: "/api/v1/2fa/verify", token: "nope", wantStatus: http.StatusOK},
		{name: "public with token", method: http.MethodPost, path: "/api/v1/2fa/verify", token: "user-token", wantStatus: http.StatusOK, wantAuth: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			rec, body := doRequest(r, tt.method, tt.path, tt.token)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%v)", rec.Code, tt.wantStatus, body)
			}
			if (seen != nil) != tt.wantAuth {
				t.Fatalf("auth in context = %v, want %v", seen != nil, tt.wantAuth)
			}
			if rec.Code == http.StatusUnauthorized {
				errMap, _ := body["error"].(map[string]any)
				if errMap["reason"] != "unauthenticated" {
					t.Fatalf("reason = %v", body)
				}
			}
		})
	}
}

func TestRouter_RevocationStoreDown(t *testing.T) {
	r := newTestRouter(t, &stubRevocation{err: errors.New("redis down")})
	r.GET("/api/v1/identity/profile", func(*Request) (any, error) { return "ok", nil })

	rec, _ := doRequest(r, http.MethodGet, "/api/v1/identity/profile", "user-token")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 when revocation store fails", rec.Code)
	}
}

func TestRouter_ErrorReason(t *testing.T) {
	r := newTestRouter(t, nil)
	r.POST("/api/v1/2fa/verify", func(*Request) (any, error) {
		return nil, goerror.WithReason(goerror.NewBusiness("Invalid code", goerror.CodeForbidden), "invalid_code")
	})

	rec, body := doRequest(r, http.MethodPost, "/api/v1/2fa/verify", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["message"] != "Invalid code" {
		t.Fatalf("message = %v", body["message"])
	}
	errMap, _ := body["error"].(map[string]any)
	if errMap["reason"] != "invalid_code" {
		t.Fatalf("reason = %v", body["error"])
	}
}

func TestRouter_Authorize(t *testing.T) {
	r := newTestRouter(t, nil)
	r.GET("/api/v1/admin/stepup/challenges", func(*Request) (any, error) {
		return []string{}, nil
	}, r.Authorize("stepup.challenges", "read"))

	if rec, _ := doRequest(r, http.MethodGet, "/api/v1/admin/stepup/challenges", "user-token"); rec.Code != http.StatusForbidden {
		t.Fatalf("user status = %d", rec.Code)
	}
	if rec, _ := doRequest(r, http.MethodGet, "/api/v1/admin/stepup/challenges", "admin-token"); rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d", rec.Code)
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("a"), nil, mw("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if strings.Join(order, ",") != "a,b,handler" {
		t.Fatalf("order = %v", order)
	}
}
