package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dfinsell-next/internal/config"
	"github.com/dfinsell-next/internal/constants"
	"github.com/dfinsell-next/internal/logger"
	"github.com/dfinsell-next/internal/models"
	"github.com/dfinsell-next/internal/repository"
	"github.com/dfinsell-next/internal/service"

	"github.com/shopspring/decimal"
)

// 本地联调用的示例数据：一个商品、两个沙箱账户和一笔待支付订单
func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	productRepo := repository.NewProductRepository(models.DB)
	orderRepo := repository.NewOrderRepository(models.DB)
	store := service.NewAccountStore(repository.NewSettingRepository(models.DB))

	accounts, err := store.Load(context.Background())
	if err != nil {
		stdLog.Fatalf("Failed to load accounts: %v", err)
	}
	if len(accounts) == 0 {
		seeded := []models.Account{
			{Title: "Primary", Priority: 1, LivePublicKey: "pk_live_primary", LiveSecretKey: "sk_live_primary", HasSandbox: true, SandboxPublicKey: "pk_test_primary", SandboxSecretKey: "sk_test_primary"},
			{Title: "Backup", Priority: 2, LivePublicKey: "pk_live_backup", LiveSecretKey: "sk_live_backup", HasSandbox: true, SandboxPublicKey: "pk_test_backup", SandboxSecretKey: "sk_test_backup"},
		}
		if _, err := store.Save(context.Background(), seeded); err != nil {
			stdLog.Fatalf("Failed to seed accounts: %v", err)
		}
		stdLog.Printf("Seeded %d accounts", len(seeded))
	} else {
		stdLog.Printf("Accounts already configured: %d", len(accounts))
	}

	product := &models.Product{Name: "Demo Widget", ManageStock: true, Stock: 100}
	if err := productRepo.Create(product); err != nil {
		stdLog.Fatalf("Failed to create product: %v", err)
	}

	order := &models.Order{
		OrderKey:    fmt.Sprintf("wc_order_%d", time.Now().Unix()),
		Status:      constants.OrderStatusPending,
		Currency:    "USD",
		TotalAmount: models.NewMoneyFromDecimal(decimal.RequireFromString("19.99")),
		Billing: models.BillingAddress{
			FirstName: "Demo",
			LastName:  "Buyer",
			Email:     "buyer@example.com",
			Address1:  "1 Market Street",
			City:      "San Francisco",
			State:     "CA",
			Postcode:  "94105",
			Country:   "US",
		},
	}
	if err := orderRepo.Create(order, []models.OrderItem{{ProductID: product.ID, Quantity: 1}}); err != nil {
		stdLog.Fatalf("Failed to create order: %v", err)
	}
	stdLog.Printf("Seeded pending order id=%d key=%s", order.ID, order.OrderKey)
}
