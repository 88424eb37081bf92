package api

import (
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"strings"  // Header parsing
	"time"     // Durations

	"kolia/internal/domain"     // Roles
	"kolia/internal/errs"       // Error taxonomy
	"kolia/internal/middleware" // Context keys
	"kolia/internal/service"    // Business services
	"kolia/internal/utils"      // Cache helpers

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// Deps are the collaborators shared by every handler
type Deps struct {
	DB        *gorm.DB
	Cache     *utils.Cache
	Orders    *service.OrderService
	Payments  *service.PaymentService
	JWTSecret string
	JWTTTL    time.Duration
	IsProd    bool
}

const cacheTTL = 60 * time.Second

func respond(c *gin.Context, status int, message string, data any) {
	body := gin.H{"success": status < http.StatusBadRequest}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

func respondOK(c *gin.Context, data any) {
	respond(c, http.StatusOK, "", data)
}

// respondError maps err onto the envelope. Internal details are only exposed outside production.
func respondError(c *gin.Context, err error, isProd bool) {
	status := errs.HTTPStatus(err)
	body := gin.H{"success": false}
	e, typed := errs.As(err)
	switch {
	case typed && status < http.StatusInternalServerError:
		body["message"] = e.Message
		body["code"] = e.Code
		if len(e.Fields) > 0 {
			body["fields"] = e.Fields
		}
	case typed && e.Kind == errs.KindUpstream:
		body["message"] = e.Message
		body["code"] = e.Code
	default:
		body["message"] = "Internal server error"
		body["code"] = errs.CodeOf(err)
	}
	if status >= http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"request_id": c.GetString(middleware.CtxRequestID),
			"path":       c.Request.URL.Path,
			"error":      err.Error(),
		}).Error("Request error")
		if !isProd {
			body["error"] = err.Error()
		}
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": message, "code": errs.CodeInvalidInput})
}

// currentActor reads the caller set by the auth middlewares
func currentActor(c *gin.Context) service.Actor {
	var a service.Actor
	if v, ok := c.Get(middleware.CtxUserID); ok {
		a.ID, _ = v.(uint)
	}
	if v, ok := c.Get(middleware.CtxRole); ok {
		a.Role, _ = v.(domain.Role)
	}
	return a
}

func parseUint(v string) (uint, error) {
	n, err := strconv.ParseUint(v, 10, 64)
	return uint(n), err
}

// uintParam parses a positive numeric path parameter, answering 400 otherwise
func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := parseUint(c.Param(name))
	if err != nil || v == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

// listParams reads page, page_size and status from the query string
func listParams(c *gin.Context) service.ListParams {
	p := service.ListParams{Status: c.Query("status")}
	p.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	p.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	p.Normalize()
	return p
}

func paged(key string, items any, p service.ListParams, total int64) gin.H {
	return gin.H{
		key:           items,
		"page":        p.Page,
		"page_size":   p.PageSize,
		"total":       total,
		"total_pages": (int(total) + p.PageSize - 1) / p.PageSize,
	}
}

// optionalUserID returns the caller on public routes that carry a valid bearer token, or 0
func optionalUserID(c *gin.Context, d *Deps) uint {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return 0
	}
	claims, err := utils.ParseJWT(strings.TrimPrefix(header, "Bearer "), d.JWTSecret)
	if err != nil {
		return 0
	}
	return claims.UserID
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
