package router

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dfinsell-next/internal/authz"
	"github.com/dfinsell-next/internal/config"
	"github.com/dfinsell-next/internal/http/response"
	"github.com/dfinsell-next/internal/logger"
	"github.com/dfinsell-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
	adminIDKey      = "admin_id"
	adminSuperKey   = "admin_is_super"
	hookTokenHeader = "X-Dfinsell-Hook-Token"
)

// 探活与指标抓取不写请求日志
var quietPaths = map[string]struct{}{
	"/healthz": {},
	"/metrics": {},
}

// CORSMiddleware 跨域中间件；checkout 页面与后台前端可能部署在不同域名
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}
	}
	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Content-Type", "Authorization", "X-Requested-With", requestIDHeader}
	}
	allowMethods := strings.Join(methods, ", ")
	allowHeaders := strings.Join(headers, ", ")
	maxAge := ""
	if cfg.MaxAge > 0 {
		maxAge = strconv.Itoa(cfg.MaxAge)
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		if origin := resolveAllowedOrigin(c.GetHeader("Origin"), origins, cfg.AllowCredentials); origin != "" {
			h.Set("Access-Control-Allow-Origin", origin)
			if origin != "*" {
				h.Add("Vary", "Origin")
			}
		}
		if cfg.AllowCredentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		h.Set("Access-Control-Expose-Headers", requestIDHeader+", Retry-After")
		if maxAge != "" {
			h.Set("Access-Control-Max-Age", maxAge)
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// resolveAllowedOrigin 通配符在允许凭证时回显请求来源
func resolveAllowedOrigin(origin string, allowed []string, allowCredentials bool) string {
	for _, item := range allowed {
		switch {
		case item == "*" && allowCredentials && origin != "":
			return origin
		case item == "*":
			return "*"
		case origin != "" && strings.EqualFold(item, origin):
			return origin
		}
	}
	return ""
}

// RequestIDMiddleware 透传或生成请求 ID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志
func LoggerMiddleware(base *zap.Logger) gin.HandlerFunc {
	if base == nil {
		base = zap.L()
	}
	sugar := base.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if _, quiet := quietPaths[c.Request.URL.Path]; quiet {
			return
		}

		status := c.Writer.Status()
		log := sugar.With(
			"request_id", getRequestID(c),
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
		switch {
		case len(c.Errors) > 0:
			log.Errorw("http_request", "errors", c.Errors.String())
		case status >= http.StatusInternalServerError:
			log.Warnw("http_request")
		default:
			log.Infow("http_request")
		}
	}
}

func getRequestID(c *gin.Context) string {
	if id, ok := c.Get(requestIDKey); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// JWTAuthMiddleware 校验管理员令牌，并确认管理员仍然存在
func JWTAuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authService == nil {
			response.Unauthorized(c, "authentication unavailable")
			c.Abort()
			return
		}
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Unauthorized(c, "missing or malformed authorization header")
			c.Abort()
			return
		}
		admin, err := authService.Authenticate(token)
		if err != nil {
			if !errors.Is(err, service.ErrAdminTokenInvalid) {
				logger.Errorw("admin_authenticate_failed", "error", err)
			}
			response.Unauthorized(c, "invalid token")
			c.Abort()
			return
		}
		c.Set(adminIDKey, admin.ID)
		c.Set(adminSuperKey, admin.IsSuper)
		c.Next()
	}
}

// AdminRBACMiddleware 按路由模板做 casbin 鉴权；超级管理员直接放行
func AdminRBACMiddleware(authzService *authz.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetBool(adminSuperKey) {
			c.Next()
			return
		}
		adminID := c.GetUint(adminIDKey)
		if adminID == 0 || authzService == nil {
			logger.Warnw("admin_rbac_unavailable", "admin_id", adminID, "path", c.Request.URL.Path)
			response.Unauthorized(c, "unauthorized")
			c.Abort()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		allowed, err := authzService.Allowed(adminID, c.Request.Method, route)
		if err != nil {
			logger.Errorw("admin_rbac_enforce_failed", "admin_id", adminID, "route", route, "error", err)
			response.Unauthorized(c, "unauthorized")
			c.Abort()
			return
		}
		if !allowed {
			logger.Warnw("admin_rbac_permission_denied",
				"admin_id", adminID,
				"method", c.Request.Method,
				"route", authz.NormalizeObject(route),
			)
			response.Forbidden(c, "forbidden")
			c.Abort()
			return
		}
		c.Next()
	}
}

// HookAuthMiddleware 校验电商钩子的共享密钥；未配置密钥时拒绝全部调用
func HookAuthMiddleware(secret string) gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(secret))
	return func(c *gin.Context) {
		if len(expected) == 0 {
			logger.Warnw("hook_secret_not_configured", "path", c.Request.URL.Path)
			response.Unauthorized(c, "hook authentication unavailable")
			c.Abort()
			return
		}
		token := strings.TrimSpace(c.GetHeader(hookTokenHeader))
		if token == "" || subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			logger.Warnw("hook_auth_failed", "path", c.Request.URL.Path, "client_ip", c.ClientIP())
			response.Unauthorized(c, "invalid hook token")
			c.Abort()
			return
		}
		c.Next()
	}
}
