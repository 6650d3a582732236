// seed-admin creates or resets the admin user (username: admin).
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
//
// The password may be overridden with ADMIN_PASSWORD; it defaults to "admin"
// and should be changed on first login.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hisabworks/hisab_backend/config"
	"github.com/hisabworks/hisab_backend/models"
	"github.com/hisabworks/hisab_backend/utils"
	"gorm.io/gorm"
)

const (
	adminUsername = "admin"
	adminName     = "Administrator"
)

func main() {
	ctx := context.Background()
	db := config.ConnectDatabaseWithRetry()

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin"
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	var existing models.User
	err = db.WithContext(ctx).Where("username = ?", adminUsername).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			Username: adminUsername,
			Name:     adminName,
			Password: string(hashed),
			Role:     models.UserRoleAdmin,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q\n", adminUsername)
		return
	}

	if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).Updates(map[string]any{
		"password": string(hashed),
		"name":     adminName,
		"role":     models.UserRoleAdmin,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Reset admin user: username=%q\n", adminUsername)
}
