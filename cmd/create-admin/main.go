// Command create-admin creates an admin principal, or resets the password
// of an existing one when -update-password is given.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/metavr/access-service/internal/config"
	"github.com/metavr/access-service/internal/database"
	"github.com/metavr/access-service/internal/model"
	"github.com/metavr/access-service/internal/repository"
	"github.com/metavr/access-service/internal/utils"
)

func main() {
	email := flag.String("email", "", "admin email (required)")
	password := flag.String("password", "", "admin password (required, at least 8 characters)")
	name := flag.String("name", "", "display name")
	update := flag.Bool("update-password", false, "reset the password when the admin already exists")
	flag.Parse()

	if err := run(*email, *password, *name, *update); err != nil {
		fmt.Fprintln(os.Stderr, "create-admin:", err)
		os.Exit(1)
	}
}

func run(email, password, name string, update bool) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return errors.New("-email and -password are required")
	}
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	cfg := config.Load()
	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.DBAutoMigrate {
		if err := database.Migrate(cfg); err != nil {
			return err
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hash, err := utils.HashPassword(password, cfg.BcryptCost)
	if err != nil {
		return err
	}
	repo := repository.NewPrincipalRepo(db)

	existing, err := repo.FindByEmail(ctx, email, model.RoleAdmin)
	switch {
	case err == nil:
		if !update {
			return fmt.Errorf("admin %s already exists (use -update-password to reset it)", email)
		}
		_, err = repo.Mutate(ctx, existing.ID, func(p *model.Principal) error {
			p.PasswordHash = hash
			p.Status = model.StatusActive
			if name != "" {
				p.Name = name
			}
			p.UpdatedAt = time.Now().UTC()
			return nil
		})
		if err != nil {
			return err
		}
		log.Printf("password updated for admin %s (%s)", email, existing.ID)
		return nil
	case !errors.Is(err, repository.ErrNotFound):
		return err
	}

	now := time.Now().UTC()
	p := model.Principal{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		Role:         model.RoleAdmin,
		Status:       model.StatusActive,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(ctx, p); err != nil {
		return err
	}
	log.Printf("admin %s created (%s)", email, p.ID)
	return nil
}
