package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/sehaty-app/backend-sehaty/internal/auth"
	"github.com/sehaty-app/backend-sehaty/internal/common"
)

type memUsers struct {
	byEmail map[string]auth.UserRecord
	byID    map[uuid.UUID]auth.UserRecord
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: map[string]auth.UserRecord{}, byID: map[uuid.UUID]auth.UserRecord{}}
}

func (m *memUsers) CreateUser(_ context.Context, u auth.UserRecord) (auth.UserRecord, error) {
	if _, exists := m.byEmail[u.Email]; exists {
		return auth.UserRecord{}, auth.ErrEmailTaken
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.byEmail[u.Email] = u
	m.byID[u.ID] = u
	return u, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (auth.UserRecord, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return auth.UserRecord{}, auth.ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) GetUserByID(_ context.Context, id uuid.UUID) (auth.UserRecord, error) {
	u, ok := m.byID[id]
	if !ok {
		return auth.UserRecord{}, auth.ErrUserNotFound
	}
	return u, nil
}

func newTestService(t *testing.T) (*auth.Service, *memUsers) {
	t.Helper()
	store := newMemUsers()
	svc, err := auth.NewService(auth.Config{Store: store, Secret: "test-jwt-secret", AccessTokenTTL: time.Hour})
	require.NoError(t, err)
	return svc, store
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Sara", "sara@example.com", "password123")
	require.NoError(t, err)
	require.Equal(t, auth.RolePatient, user.Role)

	result, err := svc.Login(ctx, "Sara@Example.com", "password123")
	require.NoError(t, err)
	require.Equal(t, user.ID, result.User.ID)
	require.NotEmpty(t, result.AccessToken)

	claims, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, auth.RolePatient, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "Sara", "sara@example.com", "password123")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "sara@example.com", "wrong-password")
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_CREDENTIALS", appErr.Code)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "Sara", "sara@example.com", "password123")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "Other", "sara@example.com", "password456")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "EMAIL_ALREADY_USED", appErr.Code)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "a@example.com", "password123")
	require.Error(t, err)
	_, err = svc.Register(ctx, "Sara", "", "password123")
	require.Error(t, err)
	_, err = svc.Register(ctx, "Sara", "a@example.com", "short")
	require.Error(t, err)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "Sara", "sara@example.com", "password123")
	require.NoError(t, err)

	past := time.Now().Add(-48 * time.Hour)
	svc.WithNow(func() time.Time { return past })
	result, err := svc.Login(ctx, "sara@example.com", "password123")
	require.NoError(t, err)

	svc.WithNow(time.Now)
	_, err = svc.ParseAccessToken(result.AccessToken)
	require.Error(t, err)
}

func TestParseAccessTokenRejectsForeignAlgorithm(t *testing.T) {
	svc, _ := newTestService(t)

	// A token signed under a different key never validates.
	tok, err := jwt.NewBuilder().
		Subject(uuid.NewString()).
		Issuer("backend-sehaty").
		Audience([]string{"sehaty-frontend"}).
		Expiration(time.Now().Add(time.Hour)).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte("some-other-secret")))
	require.NoError(t, err)

	_, err = svc.ParseAccessToken(string(signed))
	require.Error(t, err)
}

func TestRequireAuthMiddleware(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "Sara", "sara@example.com", "password123")
	require.NoError(t, err)
	result, err := svc.Login(ctx, "sara@example.com", "password123")
	require.NoError(t, err)

	mw := auth.Middleware{Service: svc}
	var seenUser string
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser, _ = common.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+result.AccessToken)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, result.User.ID, seenUser)

	// No token at all.
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	// Mangled token.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+strings.Repeat("x", 40))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	require.NoError(t, err)
	return hash
}

func TestRequireRole(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "Sara", "sara@example.com", "password123")
	require.NoError(t, err)

	admin, err := store.CreateUser(ctx, auth.UserRecord{
		Name:         "Admin",
		Email:        "admin@example.com",
		PasswordHash: mustHash(t, "adminpass123"),
		Role:         auth.RoleAdmin,
	})
	require.NoError(t, err)
	_ = admin

	patientLogin, err := svc.Login(ctx, "sara@example.com", "password123")
	require.NoError(t, err)
	adminLogin, err := svc.Login(ctx, "admin@example.com", "adminpass123")
	require.NoError(t, err)

	mw := auth.Middleware{Service: svc}
	handler := mw.RequireAuth(mw.RequireRole(auth.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+adminLogin.AccessToken)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+patientLogin.AccessToken)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
}
