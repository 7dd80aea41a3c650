// Seed provisions a tenant with an API key, a webhook secret and a demo
// user with wallets. The full API key is printed exactly once; only its
// bcrypt hash is stored.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"

	"payvault/internal/config"
	"payvault/internal/models"
	"payvault/internal/repositories"
	"payvault/internal/services/ledger"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	config.LoadEnv()

	tenantName := os.Getenv("SEED_TENANT_NAME")
	if tenantName == "" {
		log.Fatal("SEED_TENANT_NAME must be set in environment")
	}

	db, err := repositories.InitDB()
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}

	ctx := context.Background()
	tenants := repositories.NewTenantRepository(db)

	var existing models.Tenant
	if db.Where("name = ?", tenantName).First(&existing).Error == nil {
		log.Printf("tenant %q already exists", tenantName)
		return
	}

	prefix := randomHex(4)
	apiKey := fmt.Sprintf("pv_%s_%s", prefix, randomHex(24))
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash api key: %v", err)
	}

	tenant := &models.Tenant{
		Name:          tenantName,
		APIKeyHash:    string(hash),
		APIKeyPrefix:  prefix,
		WebhookURL:    os.Getenv("SEED_WEBHOOK_URL"),
		WebhookSecret: randomHex(32),
		Status:        models.TenantStatusActive,
	}
	if err := tenants.CreateTenant(ctx, tenant); err != nil {
		log.Fatalf("failed to create tenant: %v", err)
	}

	user := &models.User{
		TenantID:  tenant.ID,
		Email:     fmt.Sprintf("demo@%s.example", tenantName),
		FirstName: "Demo",
		LastName:  "User",
	}
	if err := tenants.CreateUser(ctx, user); err != nil {
		log.Fatalf("failed to create user: %v", err)
	}

	wallets := repositories.NewWalletRepository(db)
	for _, currency := range []string{"USD", "EUR"} {
		wallet := &models.Wallet{
			TenantID:           tenant.ID,
			UserID:             user.ID,
			Currency:           currency,
			Status:             models.WalletStatusActive,
			DailyLimitAmount:   ledger.DefaultDailyLimit,
			MonthlyLimitAmount: ledger.DefaultMonthlyLimit,
		}
		if err := wallets.Create(ctx, wallet); err != nil {
			log.Fatalf("failed to create %s wallet: %v", currency, err)
		}
	}

	log.Printf("tenant %q created (id=%d, user=%d)", tenantName, tenant.ID, user.ID)
	log.Printf("api key (store this now, it is not recoverable): %s", apiKey)
	log.Printf("webhook secret: %s", tenant.WebhookSecret)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("failed to read random bytes: %v", err)
	}
	return hex.EncodeToString(buf)
}
