package router

import (
	"net/http"
	"sort"
	"strings"

	"github.com/dfinsell-next/internal/authz"
	"github.com/dfinsell-next/internal/cache"
	"github.com/dfinsell-next/internal/config"
	adminhandlers "github.com/dfinsell-next/internal/http/handlers/admin"
	publichandlers "github.com/dfinsell-next/internal/http/handlers/public"
	"github.com/dfinsell-next/internal/http/response"
	"github.com/dfinsell-next/internal/logger"
	"github.com/dfinsell-next/internal/metrics"
	"github.com/dfinsell-next/internal/models"
	"github.com/dfinsell-next/internal/provider"

	"github.com/gin-gonic/gin"
)

const apiV1Prefix = "/dfinsell/v1"

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisClient := cache.Client()
	checkoutRule := RateLimitRule{
		Name:          "checkout",
		Prefix:        cache.BuildKey("rate:checkout"),
		WindowSeconds: cfg.Security.CheckoutRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.CheckoutRateLimit.MaxRequests,
	}
	adminLoginRule := RateLimitRule{
		Name:          "admin_login",
		Prefix:        cache.BuildKey("rate:admin_login"),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxRequests,
	}
	adminCaptchaRule := RateLimitRule{
		Name:          "admin_captcha",
		Prefix:        cache.BuildKey("rate:admin_captcha"),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxRequests * 2,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(metrics.Middleware())
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/metrics", metrics.Handler())
	r.GET("/healthz", func(ctx *gin.Context) {
		if err := pingDB(); err != nil {
			logger.Errorw("healthz_db_ping_failed", "error", err)
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "down"})
			return
		}
		response.Success(ctx, gin.H{"status": "ok"})
	})

	apiV1 := r.Group(apiV1Prefix)
	{
		// 网关回调（按 HTTP 状态码应答）
		apiV1.POST("/data", publicHandler.ProviderCallback)

		// 结账与弹窗会话
		apiV1.POST("/checkout", RateLimitMiddleware(redisClient, checkoutRule, KeyByIP), publicHandler.Checkout)
		apiV1.GET("/return", publicHandler.PaymentReturn)
		apiV1.POST("/ajax/check-payment-status", publicHandler.CheckPaymentStatus)
		apiV1.POST("/ajax/popup-closed", publicHandler.PopupClosed)

		// 电商系统钩子（共享密钥）
		hooks := apiV1.Group("/hooks", HookAuthMiddleware(cfg.Security.HookSecret))
		hooks.POST("/orders/:id/unpaid", publicHandler.OrderUnpaidHook)

		// 管理员接口
		admin := apiV1.Group("/admin")
		{
			// 登录与验证码（无需鉴权）
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIP), adminHandler.AdminLogin)
			admin.GET("/captcha", RateLimitMiddleware(redisClient, adminCaptchaRule, KeyByIP), adminHandler.GetLoginCaptcha)

			// 需要鉴权的接口
			authorized := admin.Use(JWTAuthMiddleware(c.AuthService), AdminRBACMiddleware(c.AuthzService))
			{
				// 商户账户
				authorized.GET("/accounts", adminHandler.GetAccounts)
				authorized.PUT("/accounts", adminHandler.UpdateAccounts)

				// 网关设置
				authorized.GET("/settings", adminHandler.GetGatewaySettings)
				authorized.PUT("/settings", adminHandler.UpdateGatewaySettings)

				// 账户状态同步
				authorized.GET("/sync-token", adminHandler.GetSyncToken)
				authorized.POST("/manual-sync", adminHandler.ManualSync)

				// 订单
				authorized.GET("/orders", adminHandler.GetOrders)
				authorized.GET("/orders/:id", adminHandler.GetOrder)

				// 权限管理
				authorized.GET("/authz/roles", adminHandler.GetRoles)
				authorized.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
					response.Success(ctx, buildAdminPermissionCatalog(r))
				})
				authorized.GET("/admins/:id/roles", adminHandler.GetAdminRoles)
				authorized.PUT("/admins/:id/roles", adminHandler.SetAdminRoles)
			}
		}
	}

	return r
}

func pingDB() error {
	if models.DB == nil {
		return nil
	}
	sqlDB, err := models.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	adminPrefix := apiV1Prefix + "/admin/"
	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, adminPrefix) || isPublicAdminRoute(strings.TrimPrefix(item.Path, adminPrefix)) {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func isPublicAdminRoute(path string) bool {
	switch path {
	case "login", "captcha":
		return true
	}
	return false
}

func deriveAdminPermissionModule(object string) string {
	segments := strings.Split(strings.Trim(strings.TrimSpace(object), "/"), "/")
	if len(segments) < 2 || segments[0] != "admin" {
		return segments[0]
	}
	switch segments[1] {
	case "authz", "admins":
		return "authz"
	case "sync-token", "manual-sync":
		return "sync"
	}
	return segments[1]
}
