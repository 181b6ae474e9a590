package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/internal/permission"
	"github.com/frahmantamala/innovation-portal/pkg/logger"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

type mockAuthService struct {
	ServiceAPI
	principals map[string]*Principal
	authErr    error
	loggedOut  []string
}

func (m *mockAuthService) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if m.authErr != nil {
		return nil, m.authErr
	}
	p, ok := m.principals[token]
	if !ok {
		return nil, internal.ErrInvalidToken
	}
	return p, nil
}

func (m *mockAuthService) VerifyOTP(ctx context.Context, dto VerifyOTPDTO) (*LoginResult, error) {
	if dto.Code != "123456" {
		return nil, ErrOTPInvalid
	}
	return &LoginResult{
		Token:     "signed-token",
		ExpiresAt: time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
		User:      &User{ID: "u-1", Email: dto.Email},
	}, nil
}

func (m *mockAuthService) CurrentUser(ctx context.Context, p *Principal) (*User, error) {
	return &User{ID: p.UserID, Email: p.Email}, nil
}

func (m *mockAuthService) Logout(ctx context.Context, p *Principal) error {
	m.loggedOut = append(m.loggedOut, p.SessionID)
	return nil
}

type stubAuthorizer struct {
	granted bool
	err     error
}

func (s *stubAuthorizer) CheckPermission(ctx context.Context, principalID, key string, opts ...permission.CheckOption) (bool, error) {
	return s.granted, s.err
}

func errorCodeOf(rec *httptest.ResponseRecorder) string {
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	gomega.ExpectWithOffset(1, json.Unmarshal(rec.Body.Bytes(), &body)).To(gomega.Succeed())
	return body.Error.Code
}

var _ = ginkgo.Describe("Auth Handler", func() {
	var (
		svc     *mockAuthService
		handler *Handler
		reached bool
		next    http.Handler
	)

	ginkgo.BeforeEach(func() {
		svc = &mockAuthService{principals: map[string]*Principal{
			"good": {UserID: "u-1", Email: "alice@example.com", SessionID: "s-1"},
		}}
		handler = NewHandler(svc, CookieConfig{Name: "innovation_session"})
		reached = false
		next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reached = true
			gomega.Expect(internal.UserIDFromContext(r.Context())).To(gomega.Equal("u-1"))
			w.WriteHeader(http.StatusOK)
		})
	})

	ginkgo.Describe("AuthMiddleware", func() {
		ginkgo.It("should accept a bearer token", func() {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer good")
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(reached).To(gomega.BeTrue())
		})

		ginkgo.It("should accept the session cookie", func() {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: "innovation_session", Value: "good"})
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(next).ServeHTTP(rec, req)

			gomega.Expect(reached).To(gomega.BeTrue())
		})

		ginkgo.It("should fail closed without credentials", func() {
			rec := httptest.NewRecorder()
			handler.AuthMiddleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(errorCodeOf(rec)).To(gomega.Equal("UNAUTHENTICATED"))
			gomega.Expect(reached).To(gomega.BeFalse())
		})

		ginkgo.It("should answer 503 when the session store is down", func() {
			svc.authErr = internal.NewInfrastructureError("failed to load session", errors.New("timeout"))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer good")
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusServiceUnavailable))
			gomega.Expect(reached).To(gomega.BeFalse())
		})
	})

	ginkgo.It("should set an http-only session cookie after verification", func() {
		req := httptest.NewRequest(http.MethodPost, "/auth/otp/verify", strings.NewReader(`{"email":"alice@example.com","code":"123456"}`))
		rec := httptest.NewRecorder()

		handler.VerifyOTP(rec, req)

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		cookies := rec.Result().Cookies()
		gomega.Expect(cookies).To(gomega.HaveLen(1))
		gomega.Expect(cookies[0].Name).To(gomega.Equal("innovation_session"))
		gomega.Expect(cookies[0].Value).To(gomega.Equal("signed-token"))
		gomega.Expect(cookies[0].HttpOnly).To(gomega.BeTrue())
	})

	ginkgo.It("should report an anonymous session without failing", func() {
		req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
		req.Header.Set("Authorization", "Bearer stale")
		rec := httptest.NewRecorder()

		handler.Session(rec, req)

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		var resp SessionResponse
		gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(gomega.Succeed())
		gomega.Expect(resp.Authenticated).To(gomega.BeFalse())
	})

	ginkgo.It("should delete the session and clear the cookie on logout", func() {
		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()

		handler.AuthMiddleware(http.HandlerFunc(handler.Logout)).ServeHTTP(rec, req)

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
		gomega.Expect(svc.loggedOut).To(gomega.Equal([]string{"s-1"}))
		gomega.Expect(rec.Result().Cookies()[0].MaxAge).To(gomega.BeNumerically("<", 0))
	})

	ginkgo.Describe("RBACAuthorization", func() {
		serve := func(authorizer PermissionAuthorizer) *httptest.ResponseRecorder {
			gate := NewRBACAuthorization(authorizer, logger.Discard()).Middleware(permission.AuditRead)
			req := httptest.NewRequest(http.MethodGet, "/audit", nil)
			req.Header.Set("Authorization", "Bearer good")
			rec := httptest.NewRecorder()
			handler.AuthMiddleware(gate(next)).ServeHTTP(rec, req)
			return rec
		}

		ginkgo.It("should pass granted principals through", func() {
			rec := serve(&stubAuthorizer{granted: true})
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		})

		ginkgo.It("should answer 403 with the required permission", func() {
			rec := serve(&stubAuthorizer{granted: false})
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
			gomega.Expect(errorCodeOf(rec)).To(gomega.Equal("PERMISSION_DENIED"))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring(permission.AuditRead))
		})

		ginkgo.It("should never turn a resolver fault into a denial", func() {
			rec := serve(&stubAuthorizer{err: internal.NewInfrastructureError("failed to resolve permissions", errors.New("down"))})
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusServiceUnavailable))
			gomega.Expect(errorCodeOf(rec)).To(gomega.Equal("INFRASTRUCTURE_FAULT"))
		})
	})
})
