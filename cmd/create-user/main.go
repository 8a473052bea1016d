package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/traincenter/traincenter-backend/internal/config"
	"github.com/traincenter/traincenter-backend/internal/database"
	"github.com/traincenter/traincenter-backend/internal/logger"
	"github.com/traincenter/traincenter-backend/internal/model"
	"github.com/traincenter/traincenter-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create Platform User ===")

	fmt.Print("Enter Username: ")
	username, _ := reader.ReadString('\n')
	username = strings.TrimSpace(username)
	if username == "" {
		fmt.Println("Error: Username is required")
		return
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println()
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	fmt.Printf("Enter Org ID (default %s = system org): ", config.SystemOrgID)
	orgID, _ := reader.ReadString('\n')
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		orgID = config.SystemOrgID
	}

	fmt.Print("Super admin? (y/N): ")
	superRaw, _ := reader.ReadString('\n')
	superAdmin := strings.EqualFold(strings.TrimSpace(superRaw), "y")

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	user := &model.User{
		Username:     username,
		PasswordHash: string(hashed),
		OrgID:        orgID,
		SuperAdmin:   superAdmin,
	}
	if err := userRepo.Create(ctx, user); err != nil {
		log.Fatal().Err(err).Msg("Failed to create user")
	}

	fmt.Printf("User %q created with id %d (org %s)\n", user.Username, user.ID, user.OrgID)
}
