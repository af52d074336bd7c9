package main

import (
	"flag"
	"log"
	"os"

	"backend/internal/database"
	"backend/internal/model"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type demoUser struct {
	email string
	name  string
	role  string
}

var demoUsers = []demoUser{
	{"staff@company.com", "Staff User", model.RoleStaff},
	{"approver1@company.com", "Approver L1", model.RoleApproverL1},
	{"approver2@company.com", "Approver L2", model.RoleApproverL2},
	{"finance@company.com", "Finance User", model.RoleFinance},
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Seeds one demo user per role with a shared password so the frontend can be
// exercised immediately after a fresh migration.
func main() {
	password := flag.String("password", "Password123!", "password to use for all demo users")
	flag.Parse()

	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	dsn := "postgres://" + envOr("DB_USER", "postgres") + ":" + envOr("DB_PASSWORD", "postgres") +
		"@" + envOr("DB_HOST", "localhost") + ":" + envOr("DB_PORT", "5432") +
		"/" + envOr("DB_NAME", "procurepay") + "?sslmode=" + envOr("DB_SSLMODE", "disable")

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	created := 0
	for _, du := range demoUsers {
		var user model.User
		result := db.Where("email = ?", du.email).First(&user)
		if result.Error == nil {
			user.Name = du.name
			user.Role = du.role
			user.Password = string(hash)
			if err := db.Save(&user).Error; err != nil {
				log.Fatalf("Failed to update %s: %v", du.email, err)
			}
			log.Printf("%s already exists, ensured role is %s", du.email, du.role)
			continue
		}

		user = model.User{
			Email:    du.email,
			Name:     du.name,
			Role:     du.role,
			Password: string(hash),
		}
		if err := db.Create(&user).Error; err != nil {
			log.Fatalf("Failed to create %s: %v", du.email, err)
		}
		log.Printf("Created %s (%s)", du.email, du.role)
		created++
	}

	log.Printf("Seeded %d new users", created)
}
