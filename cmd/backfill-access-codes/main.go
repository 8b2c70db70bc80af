// Command backfill-access-codes rebuilds every supervisor's access codes
// from their assigned applications. Existing codes are kept.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/metavr/access-service/internal/config"
	"github.com/metavr/access-service/internal/database"
	"github.com/metavr/access-service/internal/logging"
	"github.com/metavr/access-service/internal/model"
	"github.com/metavr/access-service/internal/repository"
	"github.com/metavr/access-service/internal/service"
	"github.com/metavr/access-service/internal/utils"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline for the backfill")
	flag.Parse()

	if err := run(*timeout); err != nil {
		fmt.Fprintln(os.Stderr, "backfill-access-codes:", err)
		os.Exit(1)
	}
}

func run(timeout time.Duration) error {
	cfg := config.Load()
	logger := logging.Setup("backfill-access-codes", cfg.LogFmt, os.Stderr)

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
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	principals := repository.NewPrincipalRepo(db)
	apps := repository.NewApplicationRepo(db)
	access := service.NewAccessService(nil, principals, apps, repository.NewAccessRequestRepo(db), service.WithLogger(logger))

	supervisors, err := principals.ListByRole(ctx, model.RoleSupervisor)
	if err != nil {
		return err
	}
	if len(supervisors) == 0 {
		logger.Info("no supervisors found, nothing to do")
		return nil
	}

	processed := 0
	for _, sup := range supervisors {
		assignments := buildAssignments(ctx, apps, sup.AssignedApplications, logger)
		if _, err := access.SyncSupervisorCodes(ctx, sup.ID, assignments); err != nil {
			return fmt.Errorf("supervisor %s: %w", sup.ID, err)
		}
		processed++
		logger.Info("synced access codes", "supervisor_id", sup.ID, "apps", len(assignments))
	}
	logger.Info("backfill complete", "supervisors", processed)
	return nil
}

type appLookup interface {
	GetByID(ctx context.Context, id string) (model.Application, error)
}

// buildAssignments resolves assigned application ids. An unknown id still
// gets an assignment keyed by the id itself; other lookup failures are
// logged and the id is skipped.
func buildAssignments(ctx context.Context, apps appLookup, ids []string, log *slog.Logger) []service.AppAssignment {
	var out []service.AppAssignment
	for _, id := range ids {
		if id == "" {
			continue
		}
		app, err := apps.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			out = append(out, service.AppAssignment{AppID: id, AppKey: utils.NormalizeAppKey(id), AppName: id})
			continue
		}
		if err != nil {
			log.WarnContext(ctx, "application lookup failed", "app_id", id, "error", err)
			continue
		}
		slug := lastSegment(app.Path)
		if slug == "" {
			slug = app.ID
		}
		name := app.Name
		if name == "" {
			name = app.ID
		}
		out = append(out, service.AppAssignment{
			AppID:   app.ID,
			AppKey:  utils.NormalizeAppKey(slug),
			AppName: name,
			AppPath: app.Path,
		})
	}
	return out
}

func lastSegment(path string) string {
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
