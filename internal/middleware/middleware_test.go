package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kolia/internal/db"
	"kolia/internal/domain"
	"kolia/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, roles ...domain.Role) (*gin.Engine, map[domain.Role]string) {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	tokens := map[domain.Role]string{}
	for i, role := range []domain.Role{domain.RoleClient, domain.RoleAdmin} {
		u := domain.User{Name: string(role), Email: string(role) + "@kolia.cd", Password: "x", Phone: "+24397000000" + string(rune('1'+i)), Role: role}
		require.NoError(t, gdb.Create(&u).Error)
		tok, err := utils.GenerateJWT(u.ID, u.Role, secret, time.Hour)
		require.NoError(t, err)
		tokens[role] = tok
	}

	r := gin.New()
	r.Use(RequestLogger(), PrometheusMiddleware())
	r.GET("/secure", JWTAuthMiddleware(secret), RequireRoles(gdb, roles...), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"role": c.MustGet(CtxRole)})
	})
	return r, tokens
}

func do(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuthMiddleware(t *testing.T) {
	r, tokens := newRouter(t)

	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "garbage").Code)
	assert.Equal(t, http.StatusOK, do(r, tokens[domain.RoleClient]).Code)
}

func TestRequireRoles(t *testing.T) {
	r, tokens := newRouter(t, domain.RoleAdmin)

	assert.Equal(t, http.StatusForbidden, do(r, tokens[domain.RoleClient]).Code)
	w := do(r, tokens[domain.RoleAdmin])
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "admin")
}

func TestRequireRoles_DeletedAccount(t *testing.T) {
	r, _ := newRouter(t)
	ghost, err := utils.GenerateJWT(999, domain.RoleAdmin, secret, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do(r, ghost).Code)
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	r, _ := newRouter(t)

	w := do(r, "")
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestRecordOrderOperation(t *testing.T) {
	before := counterValue(t, orderOperations.WithLabelValues("create", "error"))
	RecordOrderOperation("create", false)
	assert.Equal(t, before+1, counterValue(t, orderOperations.WithLabelValues("create", "error")))

	RecordPaymentEvent("refunded")
	assert.GreaterOrEqual(t, counterValue(t, paymentEvents.WithLabelValues("refunded")), 1.0)
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:5173"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
