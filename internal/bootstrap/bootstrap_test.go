package bootstrap

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/app/models/dto"
	"github.com/yigit/classmarket/internal/config"
)

const (
	adminEmail      = "root@example.com"
	studentEmail    = "amy@example.com"
	instructorEmail = "ivy@example.com"
)

type testApp struct {
	t      *testing.T
	router *gin.Engine
	deps   *Dependencies
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	stripe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/payment_intents" {
			http.NotFound(w, r)
			return
		}
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":            "pi_123",
			"client_secret": "pi_123_secret_abc",
			"amount":        json.Number(r.PostForm.Get("amount")),
			"currency":      r.PostForm.Get("currency"),
			"status":        "requires_payment_method",
		})
	}))
	t.Cleanup(stripe.Close)

	cfg := &config.Config{}
	cfg.Server.Mode = "production"
	cfg.Database.Driver = config.DriverMemory
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.AccessTokenExpiration = "1h"
	cfg.JWT.Issuer = "classmarket"
	cfg.Payment.BaseURL = stripe.URL
	cfg.Payment.Currency = "usd"
	cfg.Payment.Timeout = "2s"
	cfg.Enrollment.StoreTimeout = "1s"
	cfg.Enrollment.LeaseDuration = "30s"
	cfg.Enrollment.IdempotencyTTL = "1h"
	cfg.Enrollment.PurgeSchedule = "@every 1h"
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/metrics"
	cfg.Seed.AdminEmail = adminEmail

	store, err := SetupStore(cfg, zerolog.Nop())
	require.NoError(t, err)
	deps, err := BuildDependencies(cfg, store.Repos, zerolog.Nop())
	require.NoError(t, err)

	return &testApp{t: t, router: SetupRouter(cfg, deps, zerolog.Nop()), deps: deps}
}

func (a *testApp) do(method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) token(email string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/v1/auth/token", "", dto.TokenRequest{Email: email})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())

	var resp dto.TokenResponse
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(a.t, resp.Token)
	return resp.Token
}

// signIn issues a token and registers the user on first sign-in
func (a *testApp) signIn(email string) string {
	a.t.Helper()
	token := a.token(email)
	w := a.do(http.MethodPost, "/api/v1/users", token, dto.CreateUserRequest{Email: email})
	require.Contains(a.t, []int{http.StatusOK, http.StatusCreated}, w.Code, w.Body.String())
	return token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestIdentityVerification(t *testing.T) {
	app := newTestApp(t)

	w := app.do(http.MethodGet, "/api/v1/carts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decode[dto.ErrorResponse](t, w)
	assert.True(t, body.Error)
	assert.Equal(t, "unauthorized access", body.Message)

	w = app.do(http.MethodGet, "/api/v1/carts", "not-a-jwt", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(http.MethodGet, "/api/v1/carts", "", nil, "Authorization", "token-without-scheme")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(http.MethodGet, "/api/v1/carts?email="+studentEmail, app.token(studentEmail), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoleChecks(t *testing.T) {
	app := newTestApp(t)
	admin := app.signIn(adminEmail)
	student := app.signIn(studentEmail)

	w := app.do(http.MethodGet, "/api/v1/users/admin/"+adminEmail, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.RoleCheckResponse{"admin": true}, decode[dto.RoleCheckResponse](t, w))

	w = app.do(http.MethodGet, "/api/v1/users/admin/"+adminEmail, student, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.RoleCheckResponse{"admin": false}, decode[dto.RoleCheckResponse](t, w))

	w = app.do(http.MethodGet, "/api/v1/users", student, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(http.MethodGet, "/api/v1/users", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.User](t, w), 2)

	// Registering a second time reports the existing record.
	w = app.do(http.MethodPost, "/api/v1/users", student, dto.CreateUserRequest{Email: studentEmail})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user already existing", decode[dto.CreateUserResponse](t, w).Message)
}

func TestClassApprovalFlow(t *testing.T) {
	app := newTestApp(t)
	admin := app.signIn(adminEmail)
	instructor := app.signIn(instructorEmail)

	w := app.do(http.MethodPost, "/api/v1/classes", instructor, dto.CreateClassRequest{Name: "Pottery", Price: 25, SpotsAvailable: 10})
	assert.Equal(t, http.StatusForbidden, w.Code)

	users := decode[[]models.User](t, app.do(http.MethodGet, "/api/v1/users", admin, nil))
	var instructorID string
	for _, u := range users {
		if u.Email == instructorEmail {
			instructorID = u.ID
		}
	}
	require.NotEmpty(t, instructorID)
	w = app.do(http.MethodPatch, "/api/v1/users/instructor/"+instructorID, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(http.MethodPost, "/api/v1/classes", instructor, dto.CreateClassRequest{Name: "Pottery", Price: 25, SpotsAvailable: 10})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	class := decode[models.Class](t, w)
	assert.Equal(t, models.ClassStatusPending, class.Status)

	assert.Empty(t, decode[[]models.Class](t, app.do(http.MethodGet, "/api/v1/classes", "", nil)))

	w = app.do(http.MethodPatch, "/api/v1/classes/"+class.ID+"/approve", instructor, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(http.MethodPatch, "/api/v1/classes/"+class.ID+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	approved := decode[[]models.Class](t, app.do(http.MethodGet, "/api/v1/classes", "", nil))
	require.Len(t, approved, 1)
	assert.Equal(t, class.ID, approved[0].ID)

	w = app.do(http.MethodGet, "/api/v1/classes/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(http.MethodPut, "/api/v1/classes/"+class.ID, instructor, map[string]interface{}{
		"price": 30, "spotsAvailable": -1, "studentsEnrolled": 0,
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, dto.ErrorCodeValidationFailed, decode[dto.ErrorResponse](t, w).Code)

	w = app.do(http.MethodPut, "/api/v1/classes/"+class.ID, instructor, map[string]interface{}{
		"price": 30, "spotsAvailable": 4, "studentsEnrolled": 0,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 4, decode[models.Class](t, app.do(http.MethodGet, "/api/v1/classes/"+class.ID, "", nil)).SpotsAvailable)
}

func TestPaymentFlow(t *testing.T) {
	app := newTestApp(t)
	admin := app.signIn(adminEmail)
	student := app.signIn(studentEmail)
	other := app.signIn("bob@example.com")

	w := app.do(http.MethodPost, "/api/v1/classes", admin, dto.CreateClassRequest{Name: "Pottery", Price: 24.99, SpotsAvailable: 3})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	class := decode[models.Class](t, w)
	require.Equal(t, http.StatusOK, app.do(http.MethodPatch, "/api/v1/classes/"+class.ID+"/approve", admin, nil).Code)

	w = app.do(http.MethodPost, "/api/v1/carts", student, dto.AddCartItemRequest{ClassID: class.ID, Name: class.Name, Price: class.Price})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	item := decode[models.CartItem](t, w)
	assert.Equal(t, studentEmail, item.Email)

	w = app.do(http.MethodDelete, "/api/v1/carts/"+item.ID, other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(http.MethodPost, "/api/v1/payments/intent", student, dto.PaymentIntentRequest{Price: 24.99})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	intent := decode[dto.PaymentIntentResponse](t, w)
	assert.Equal(t, int64(2499), intent.Amount)
	assert.Equal(t, "pi_123_secret_abc", intent.ClientSecret)

	submit := dto.SubmitPaymentRequest{
		Email:         studentEmail,
		Price:         24.99,
		TransactionID: intent.IntentID,
		CartItemIDs:   []string{item.ID},
		ClassIDs:      []string{class.ID},
		ClassNames:    []string{class.Name},
	}

	w = app.do(http.MethodPost, "/api/v1/payments", other, submit)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(http.MethodPost, "/api/v1/payments", student, submit)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[dto.SubmitPaymentResponse](t, w)
	assert.NotEmpty(t, first.InsertResult.InsertedID)
	assert.Equal(t, int64(1), first.DeleteResult.DeletedCount)
	assert.False(t, first.Replayed)

	w = app.do(http.MethodPost, "/api/v1/payments", student, submit)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	second := decode[dto.SubmitPaymentResponse](t, w)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.InsertResult, second.InsertResult)

	changed := submit
	changed.Price = 10
	w = app.do(http.MethodPost, "/api/v1/payments", student, changed)
	assert.Equal(t, http.StatusConflict, w.Code)

	got := decode[models.Class](t, app.do(http.MethodGet, "/api/v1/classes/"+class.ID, "", nil))
	assert.Equal(t, 2, got.SpotsAvailable)
	assert.Equal(t, 1, got.StudentsEnrolled)

	cart := decode[[]models.CartItem](t, app.do(http.MethodGet, "/api/v1/carts?email="+studentEmail, student, nil))
	assert.Empty(t, cart)

	payments := decode[[]models.Payment](t, app.do(http.MethodGet, "/api/v1/payments?email="+studentEmail, student, nil))
	require.Len(t, payments, 1)
	assert.Equal(t, first.InsertResult.InsertedID, payments[0].ID)

	w = app.do(http.MethodGet, "/api/v1/payments?email="+studentEmail, other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(http.MethodGet, "/api/v1/payments/all", student, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = app.do(http.MethodGet, "/api/v1/payments/all", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSubmitPaymentValidatesBody(t *testing.T) {
	app := newTestApp(t)
	student := app.signIn(studentEmail)

	w := app.do(http.MethodPost, "/api/v1/payments", student, map[string]interface{}{"email": studentEmail})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[dto.ErrorResponse](t, w)
	assert.Equal(t, dto.ErrorCodeValidationFailed, body.Code)
	assert.NotEmpty(t, body.Fields)
}

func TestPingAndMetrics(t *testing.T) {
	app := newTestApp(t)

	w := app.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = app.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "classmarket_http_requests_total"))
}
