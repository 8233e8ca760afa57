// Package seed inserts the reference data a fresh installation needs.
// Every step is idempotent: existing rows are left untouched.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	appModels "github.com/yigit/earlyalert/internal/app/models"
	appRepos "github.com/yigit/earlyalert/internal/app/repositories"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
)

// AdminEmail is the login created for the first administrator
const AdminEmail = "admin@university.edu"

func minutes(n int) *int { return &n }

// DefaultInterventionTypes are the templates offered to advisors
var DefaultInterventionTypes = []appModels.InterventionType{
	{Name: "Academic Check-In", Category: "Academic", Description: "Regular meeting to discuss academic progress and challenges", DefaultPriority: appModels.PriorityMedium, DefaultDurationMinutes: minutes(30), IsActive: true},
	{Name: "Tutoring Referral", Category: "Academic", Description: "Connect student with tutoring services", DefaultPriority: appModels.PriorityHigh, DefaultDurationMinutes: minutes(15), IsActive: true},
	{Name: "Financial Aid Consultation", Category: "Financial", Description: "Discuss financial aid options and payment plans", DefaultPriority: appModels.PriorityHigh, DefaultDurationMinutes: minutes(45), IsActive: true},
	{Name: "Counseling Referral", Category: "Wellness", Description: "Connect student with mental health services", DefaultPriority: appModels.PriorityCritical, DefaultDurationMinutes: minutes(15), IsActive: true},
	{Name: "Career Counseling", Category: "Engagement", Description: "Discuss career goals and major selection", DefaultPriority: appModels.PriorityMedium, DefaultDurationMinutes: minutes(60), IsActive: true},
	{Name: "Study Skills Workshop", Category: "Academic", Description: "Workshop on time management and study strategies", DefaultPriority: appModels.PriorityLow, DefaultDurationMinutes: minutes(90), IsActive: true},
}

// AcademicYearTerms returns the Fall, Spring and Summer terms of the academic
// year that contains now. Codes follow the 2024F / 2025S / 2025U pattern.
func AcademicYearTerms(now time.Time) []appModels.Term {
	start := now.Year()
	if now.Month() < time.August {
		start--
	}
	end := start + 1
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	return []appModels.Term{
		{ID: fmt.Sprintf("%dF", start), Name: fmt.Sprintf("Fall %d", start), StartDate: day(start, time.August, 26), EndDate: day(start, time.December, 20)},
		{ID: fmt.Sprintf("%dS", end), Name: fmt.Sprintf("Spring %d", end), StartDate: day(end, time.January, 13), EndDate: day(end, time.May, 9)},
		{ID: fmt.Sprintf("%dU", end), Name: fmt.Sprintf("Summer %d", end), StartDate: day(end, time.May, 19), EndDate: day(end, time.August, 8)},
	}
}

// CreateDefaultData creates the administrator, the intervention templates and
// the current academic year's terms when they are missing.
func CreateDefaultData(ctx context.Context, store appRepos.Store, now time.Time, lgr zerolog.Logger) error {
	lgr.Info().Msg("Checking/Creating default data (admin, intervention types, terms)...")

	return store.WithTx(ctx, func(ctx context.Context, r *appRepos.Repositories) error {
		if _, err := r.Users.GetByEmail(ctx, AdminEmail); err != nil {
			if !errors.Is(err, apperrors.ErrNotFound) {
				return err
			}
			if _, err := r.Users.Create(ctx, &appModels.User{
				Email: AdminEmail, FirstName: "System", LastName: "Administrator",
				Role: appModels.RoleAdmin, IsActive: true,
			}); err != nil {
				return fmt.Errorf("creating admin: %w", err)
			}
			lgr.Info().Str("email", AdminEmail).Msg("Created admin account")
		}

		created := 0
		for _, t := range DefaultInterventionTypes {
			if _, err := r.InterventionTypes.GetByName(ctx, t.Name); err == nil {
				continue
			} else if !errors.Is(err, apperrors.ErrNotFound) {
				return err
			}
			t := t
			if _, err := r.InterventionTypes.Create(ctx, &t); err != nil {
				return fmt.Errorf("creating intervention type %q: %w", t.Name, err)
			}
			created++
		}

		for _, term := range AcademicYearTerms(now) {
			if _, err := r.Terms.GetByID(ctx, term.ID); err == nil {
				continue
			} else if !errors.Is(err, apperrors.ErrNotFound) {
				return err
			}
			term := term
			if err := r.Terms.Upsert(ctx, &term); err != nil {
				return fmt.Errorf("creating term %s: %w", term.ID, err)
			}
		}

		lgr.Info().Int("interventionTypes", created).Msg("Default data ready")
		return nil
	})
}
