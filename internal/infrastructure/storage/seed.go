package storage

import (
	"context"
	"fmt"
	"log/slog"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

// SeedProject is a configured project plus its publish targets. Without
// explicit profiles the defaults from DefaultProfiles are used, active only
// when they carry credentials.
type SeedProject struct {
	Project  domain.Project
	Profiles []domain.Profile
}

// DefaultProfiles lists the targets created for a new project.
func DefaultProfiles(p domain.Project) []domain.Profile {
	profiles := []domain.Profile{
		{Platform: domain.PlatformLinkedIn, AccountType: domain.AccountPersonal, DisplayName: p.DisplayName + " LinkedIn"},
		{Platform: domain.PlatformLinkedIn, AccountType: domain.AccountOrganization, DisplayName: p.DisplayName + " Company Page"},
		{Platform: domain.PlatformTwitter, AccountType: domain.AccountPersonal, DisplayName: p.DisplayName + " X"},
	}
	if p.Platforms.Telegram {
		profiles = append(profiles, domain.Profile{Platform: domain.PlatformTelegram, AccountType: domain.AccountPersonal, DisplayName: p.DisplayName + " Telegram"})
	}
	return profiles
}

// Seed inserts configured projects that are not stored yet together with
// their profiles. Existing projects are left untouched.
func Seed(ctx context.Context, repo ports.Repository, seeds []SeedProject, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "seed")

	created := 0
	for _, seed := range seeds {
		inserted, err := repo.InsertProjectIfAbsent(ctx, seed.Project)
		if err != nil {
			return created, fmt.Errorf("seed project %s: %w", seed.Project.ID, err)
		}
		if !inserted {
			logger.Debug("project already stored", "project_id", seed.Project.ID)
			continue
		}
		created++

		profiles := seed.Profiles
		if len(profiles) == 0 {
			for _, profile := range DefaultProfiles(seed.Project) {
				profile.Active = seedActive(profile)
				profiles = append(profiles, profile)
			}
		}
		for _, profile := range profiles {
			profile.ProjectID = seed.Project.ID
			if _, err := repo.InsertProfile(ctx, profile); err != nil {
				return created, fmt.Errorf("seed profile %s for %s: %w", profile.Label(), seed.Project.ID, err)
			}
		}
		logger.Info("project seeded", "project_id", seed.Project.ID, "profiles", len(profiles))
	}
	return created, nil
}

// seedActive enables a target only when it carries what its publisher needs.
func seedActive(p domain.Profile) bool {
	if p.Platform == domain.PlatformTelegram {
		return p.PlatformUserID != ""
	}
	return p.AccessToken != ""
}
