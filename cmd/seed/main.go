// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev user (principal dev-principal-001) already exists.
package main

import (
	"context"
	"log"
	"time"

	categorydomain "affirmation-wave/backend/internal/category/domain"
	categoryrepo "affirmation-wave/backend/internal/category/repository"
	"affirmation-wave/backend/internal/config"
	"affirmation-wave/backend/internal/db"
	userdomain "affirmation-wave/backend/internal/user/domain"
	userrepo "affirmation-wave/backend/internal/user/repository"
)

const (
	devPrincipalID = "dev-principal-001"
	devUserID      = "dev-user-001"
)

var devCategories = []categorydomain.Category{
	{ID: "cat-money", Name: "Money", Prompt: "What belief about money is holding you back?"},
	{ID: "cat-health", Name: "Health", Prompt: "What belief about your health limits you?"},
	{ID: "cat-relationships", Name: "Relationships", Prompt: "What belief about relationships keeps repeating?"},
	{ID: "cat-career", Name: "Career", Prompt: "What belief about your work feels immovable?"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	users := userrepo.NewPostgresRepository(database)
	categories := categoryrepo.NewPostgresRepository(database)

	existing, err := users.GetByPrincipal(ctx, devPrincipalID)
	if err != nil {
		log.Fatalf("lookup dev user: %v", err)
	}
	if existing != nil {
		log.Println("seed: dev user already exists, nothing to do")
		return
	}

	now := time.Now()
	u := &userdomain.User{
		ID:          devUserID,
		PrincipalID: devPrincipalID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := users.Create(ctx, u); err != nil {
		log.Fatalf("create dev user: %v", err)
	}

	for _, c := range devCategories {
		c.CreatedAt = now
		if err := categories.Create(ctx, &c); err != nil {
			log.Fatalf("create category %s: %v", c.ID, err)
		}
	}
	log.Printf("seed: created dev user %s and %d categories", devUserID, len(devCategories))
}
