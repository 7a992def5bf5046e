package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"soundvault/config"
	"soundvault/core/auth"
	"soundvault/db"
	"soundvault/model"
	"soundvault/repository"

	"github.com/spf13/cobra"
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create the administrator account",
	Long: `Create the administrator account from ADMIN_USERNAME, ADMIN_EMAIL and
ADMIN_PASSWORD. Safe to run repeatedly: if the account already exists the
command reports it and exits without changes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		if cfg.AdminPassword == "" {
			log.Fatal("ADMIN_PASSWORD must be set")
		}
		if len(cfg.AdminPassword) < 6 {
			log.Fatal("ADMIN_PASSWORD must be at least 6 characters long")
		}

		if err := db.ConnectDB(cfg); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.CloseDB()

		if err := db.InitDB(); err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		users := repository.NewMySQLUserRepository(db.DB)

		existing, err := users.GetUserByEmail(ctx, cfg.AdminEmail)
		if err != nil {
			log.Fatalf("Failed to look up admin account: %v", err)
		}
		if existing != nil {
			fmt.Printf("Admin account already exists: %s (%s)\n", existing.Username, existing.Email)
			return
		}

		hash, err := auth.HashPassword(cfg.AdminPassword)
		if err != nil {
			log.Fatalf("Failed to hash admin password: %v", err)
		}

		admin := &model.User{
			Username:     cfg.AdminUsername,
			Email:        cfg.AdminEmail,
			PasswordHash: hash,
			Role:         model.RoleAdmin,
		}
		id, err := users.CreateUser(ctx, admin)
		if err != nil {
			log.Fatalf("Failed to create admin account: %v", err)
		}

		fmt.Printf("Admin account created: %s (%s), id=%d\n", admin.Username, admin.Email, id)
	},
}

func init() {
	rootCmd.AddCommand(createAdminCmd)
}
