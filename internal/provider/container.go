package provider

import (
	"github.com/dfinsell-next/internal/authz"
	"github.com/dfinsell-next/internal/cache"
	"github.com/dfinsell-next/internal/config"
	"github.com/dfinsell-next/internal/lock"
	"github.com/dfinsell-next/internal/logger"
	"github.com/dfinsell-next/internal/models"
	"github.com/dfinsell-next/internal/payment/dfinsell"
	"github.com/dfinsell-next/internal/queue"
	"github.com/dfinsell-next/internal/repository"
	"github.com/dfinsell-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config         *config.Config
	QueueClient    *queue.Client
	Locker         lock.Locker
	DfinsellClient *dfinsell.Client

	// Repositories
	AdminRepo   repository.AdminRepository
	OrderRepo   repository.OrderRepository
	ProductRepo repository.ProductRepository
	CartRepo    repository.CartRepository
	SettingRepo repository.SettingRepository
	NonceRepo   repository.NonceRepository

	// Services
	AuthzService        *authz.Service
	AuthService         *service.AuthService
	CaptchaService      *service.CaptchaService
	SettingService      *service.SettingService
	NonceService        *service.NonceService
	AccountStore        *service.AccountStore
	AccountSelector     *service.AccountSelector
	NotificationService *service.NotificationService
	PaymentService      *service.PaymentService
	AccountSyncService  *service.AccountSyncService
	OrderExpiryService  *service.OrderExpiryService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:         cfg,
		QueueClient:    queueClient,
		DfinsellClient: dfinsell.NewClient(cfg.Provider.BaseURL, cfg.Provider.Timeout()),
		Locker: lock.New(lock.Options{
			Driver: cfg.Lock.Driver,
			TTL:    cfg.Lock.TTL(),
			Prefix: cache.Prefix(),
		}, cache.Client(), models.DB),
	}

	c.initRepositories()
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.CartRepo = repository.NewCartRepository(db)
	c.SettingRepo = repository.NewSettingRepository(db)
	c.NonceRepo = repository.NewNonceRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo)
	c.SettingService = service.NewSettingService(c.SettingRepo, c.Config.Gateway)
	c.CaptchaService = service.NewCaptchaService(c.SettingService, c.Config.Captcha, nil)
	c.NonceService = service.NewNonceService(c.Config.JWT.SecretKey, c.NonceRepo)
	c.AccountStore = service.NewAccountStore(c.SettingRepo)
	c.AccountSelector = service.NewAccountSelector(c.AccountStore, c.Locker)
	c.NotificationService = service.NewNotificationService(c.AccountStore, c.DfinsellClient, c.QueueClient)
	c.PaymentService = service.NewPaymentService(
		c.Config,
		c.OrderRepo,
		c.ProductRepo,
		c.CartRepo,
		c.AccountStore,
		c.AccountSelector,
		c.SettingService,
		c.NonceService,
		c.NotificationService,
		c.DfinsellClient,
		c.QueueClient,
	)
	c.AccountSyncService = service.NewAccountSyncService(c.AccountStore, c.DfinsellClient, c.NonceService)
	c.OrderExpiryService = service.NewOrderExpiryService(c.OrderRepo, c.ProductRepo, c.AccountStore, c.DfinsellClient, c.Config.Order.UnpaidThreshold())
}
