package memory

import (
	"context"
	"sort"
	"time"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/repositories"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
)

type assessmentRepo struct{ sc *scope }

func (r *assessmentRepo) GetCurrentForTerm(_ context.Context, studentID int64, termID string) (*models.RiskAssessment, error) {
	var out *models.RiskAssessment
	err := r.sc.read(func(st *state) error {
		for _, a := range st.assessments {
			if a.StudentID == studentID && a.TermID == termID && a.IsCurrent {
				a := a
				out = &a
				return nil
			}
		}
		return apperrors.NewNotFoundError("current risk assessment", studentID)
	})
	return out, err
}

func (r *assessmentRepo) ClearCurrent(_ context.Context, studentID int64, termID string) (int64, error) {
	var n int64
	err := r.sc.write("assessments.clear_current", func(st *state) error {
		for id, a := range st.assessments {
			if a.StudentID == studentID && a.TermID == termID && a.IsCurrent {
				a.IsCurrent = false
				st.assessments[id] = a
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *assessmentRepo) Insert(_ context.Context, a *models.RiskAssessment) (int64, error) {
	err := r.sc.write("assessments.insert", func(st *state) error {
		if _, ok := st.students[a.StudentID]; !ok {
			return apperrors.NewNotFoundError("student", a.StudentID)
		}
		if _, ok := st.terms[a.TermID]; !ok {
			return apperrors.NewNotFoundError("term", a.TermID)
		}
		if a.IsCurrent {
			for _, existing := range st.assessments {
				if existing.StudentID == a.StudentID && existing.TermID == a.TermID && existing.IsCurrent {
					return apperrors.NewConflictError("another current assessment was recorded concurrently", nil)
				}
			}
		}
		a.ID = st.next("assessments")
		st.assessments[a.ID] = *a
		return nil
	})
	return a.ID, err
}

// newestFirst orders by calculation time then id, both descending
func newestFirst(items []*models.RiskAssessment) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CalculatedAt.Equal(items[j].CalculatedAt) {
			return items[i].CalculatedAt.After(items[j].CalculatedAt)
		}
		return items[i].ID > items[j].ID
	})
}

func (r *assessmentRepo) collect(studentID int64, currentOnly bool) ([]*models.RiskAssessment, error) {
	out := []*models.RiskAssessment{}
	err := r.sc.read(func(st *state) error {
		for _, a := range st.assessments {
			if a.StudentID != studentID || (currentOnly && !a.IsCurrent) {
				continue
			}
			a := a
			out = append(out, &a)
		}
		return nil
	})
	newestFirst(out)
	return out, err
}

func (r *assessmentRepo) GetCurrent(_ context.Context, studentID int64) (*models.RiskAssessment, error) {
	current, err := r.collect(studentID, true)
	if err != nil {
		return nil, err
	}
	if len(current) == 0 {
		return nil, apperrors.NewNotFoundError("current risk assessment", studentID)
	}
	return current[0], nil
}

func (r *assessmentRepo) ListByStudent(_ context.Context, studentID int64, offset uint64, limit int) ([]*models.RiskAssessment, int64, error) {
	all, err := r.collect(studentID, false)
	if err != nil {
		return nil, 0, err
	}
	return page(all, offset, limit), int64(len(all)), nil
}

func (r *assessmentRepo) CountCurrent(_ context.Context, studentID int64, termID string) (int, error) {
	n := 0
	err := r.sc.read(func(st *state) error {
		for _, a := range st.assessments {
			if a.StudentID == studentID && a.TermID == termID && a.IsCurrent {
				n++
			}
		}
		return nil
	})
	return n, err
}

type interventionRepo struct{ sc *scope }

func (r *interventionRepo) Create(_ context.Context, i *models.Intervention) (int64, error) {
	err := r.sc.write("interventions.create", func(st *state) error {
		if _, ok := st.students[i.StudentID]; !ok {
			return apperrors.NewNotFoundError("student", i.StudentID)
		}
		if _, ok := st.users[i.AdvisorID]; !ok {
			return apperrors.NewNotFoundError("user", i.AdvisorID)
		}
		if i.InterventionTypeID != nil {
			if _, ok := st.types[*i.InterventionTypeID]; !ok {
				return apperrors.NewNotFoundError("intervention type", *i.InterventionTypeID)
			}
		}
		if i.FollowUpOf != nil {
			if _, ok := st.interventions[*i.FollowUpOf]; !ok {
				return apperrors.NewNotFoundError("intervention", *i.FollowUpOf)
			}
			for _, existing := range st.interventions {
				if existing.FollowUpOf != nil && *existing.FollowUpOf == *i.FollowUpOf {
					return apperrors.NewConflictError("a follow-up already exists for this intervention", nil)
				}
			}
		}
		i.ID = st.next("interventions")
		st.interventions[i.ID] = *i
		return nil
	})
	return i.ID, err
}

func (r *interventionRepo) GetByID(_ context.Context, id int64) (*models.Intervention, error) {
	var out *models.Intervention
	err := r.sc.read(func(st *state) error {
		i, ok := st.interventions[id]
		if !ok {
			return apperrors.NewNotFoundError("intervention", id)
		}
		out = &i
		return nil
	})
	return out, err
}

func (r *interventionRepo) GetByIDForUpdate(ctx context.Context, id int64) (*models.Intervention, error) {
	return r.GetByID(ctx, id)
}

func (r *interventionRepo) Update(_ context.Context, i *models.Intervention) error {
	return r.sc.write("interventions.update", func(st *state) error {
		if _, ok := st.interventions[i.ID]; !ok {
			return apperrors.NewNotFoundError("intervention", i.ID)
		}
		st.interventions[i.ID] = *i
		return nil
	})
}

func hasFollowUp(st *state, id int64) bool {
	for _, other := range st.interventions {
		if other.FollowUpOf != nil && *other.FollowUpOf == id {
			return true
		}
	}
	return false
}

func matchIntervention(st *state, f repositories.InterventionFilter, i models.Intervention) bool {
	if f.StudentID != nil && i.StudentID != *f.StudentID {
		return false
	}
	if f.AdvisorID != nil && i.AdvisorID != *f.AdvisorID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if s == i.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ScheduledFrom != nil && (i.ScheduledAt == nil || i.ScheduledAt.Before(*f.ScheduledFrom)) {
		return false
	}
	if f.ScheduledBefore != nil && (i.ScheduledAt == nil || !i.ScheduledAt.Before(*f.ScheduledBefore)) {
		return false
	}
	if f.ReminderDue && !i.ReminderDue() {
		return false
	}
	if f.FollowUpRequired != nil && i.FollowUpRequired != *f.FollowUpRequired {
		return false
	}
	if f.FollowUpDueBy != nil && (i.FollowUpDate == nil || i.FollowUpDate.After(*f.FollowUpDueBy)) {
		return false
	}
	if f.WithoutFollowUp && hasFollowUp(st, i.ID) {
		return false
	}
	if f.IsStudentRequest != nil && i.IsStudentRequest != *f.IsStudentRequest {
		return false
	}
	if f.CreatedFrom != nil && i.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && !i.CreatedAt.Before(*f.CreatedTo) {
		return false
	}
	return true
}

func sortInterventions(items []*models.Intervention, order repositories.InterventionOrder) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch order {
		case repositories.OrderPriority:
			if a.Priority.Rank() != b.Priority.Rank() {
				return a.Priority.Rank() > b.Priority.Rank()
			}
			if less, ok := timeAscNilsLast(a.ScheduledAt, b.ScheduledAt); ok {
				return less
			}
			return a.ID < b.ID
		case repositories.OrderScheduled:
			if less, ok := timeAscNilsLast(a.ScheduledAt, b.ScheduledAt); ok {
				return less
			}
			return a.ID < b.ID
		case repositories.OrderFollowUpDate:
			if less, ok := timeAscNilsLast(a.FollowUpDate, b.FollowUpDate); ok {
				return less
			}
			return a.ID < b.ID
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		}
	})
}

// timeAscNilsLast orders optional times ascending, nil last. ok is false on a tie.
func timeAscNilsLast(a, b *time.Time) (less, ok bool) {
	switch {
	case a == nil && b == nil:
		return false, false
	case a == nil:
		return false, true
	case b == nil:
		return true, true
	case a.Equal(*b):
		return false, false
	default:
		return a.Before(*b), true
	}
}

func (r *interventionRepo) List(_ context.Context, f repositories.InterventionFilter, offset uint64, limit int) ([]*models.Intervention, int64, error) {
	all := []*models.Intervention{}
	err := r.sc.read(func(st *state) error {
		for _, i := range st.interventions {
			if matchIntervention(st, f, i) {
				i := i
				all = append(all, &i)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sortInterventions(all, f.Order)
	return page(all, offset, limit), int64(len(all)), nil
}

func (r *interventionRepo) FindFollowUp(_ context.Context, originalID int64) (*models.Intervention, error) {
	var out *models.Intervention
	err := r.sc.read(func(st *state) error {
		for _, i := range st.interventions {
			if i.FollowUpOf != nil && *i.FollowUpOf == originalID {
				i := i
				out = &i
				return nil
			}
		}
		return apperrors.NewNotFoundError("follow-up of intervention", originalID)
	})
	return out, err
}

func (r *interventionRepo) Stats(_ context.Context, f repositories.StatsFilter) (*models.InterventionStats, error) {
	stats := models.NewInterventionStats()
	students := map[int64]struct{}{}
	months := map[string]int64{}
	var ratingSum, ratingN, durationSum, durationN float64

	err := r.sc.read(func(st *state) error {
		for _, i := range st.interventions {
			if f.AdvisorID != nil && i.AdvisorID != *f.AdvisorID {
				continue
			}
			if f.From != nil && i.CreatedAt.Before(*f.From) {
				continue
			}
			if f.To != nil && !i.CreatedAt.Before(*f.To) {
				continue
			}
			stats.Total++
			stats.ByStatus[i.Status]++
			stats.ByPriority[i.Priority]++
			months[i.CreatedAt.UTC().Format("2006-01")]++
			typeName := models.CustomInterventionType
			if i.InterventionTypeID != nil {
				if t, ok := st.types[*i.InterventionTypeID]; ok {
					typeName = t.Name
				}
			}
			stats.ByType[typeName]++
			students[i.StudentID] = struct{}{}
			if i.Status == models.StatusCompleted && i.SuccessRating != nil {
				ratingSum += float64(*i.SuccessRating)
				ratingN++
			}
			if i.DurationMinutes != nil {
				durationSum += float64(*i.DurationMinutes)
				durationN++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats.UniqueStudents = int64(len(students))
	if ratingN > 0 {
		avg := ratingSum / ratingN
		stats.AvgSuccessRating = &avg
	}
	if durationN > 0 {
		avg := durationSum / durationN
		stats.AvgDurationMinutes = &avg
	}
	stats.CompletionRate = repositories.CompletionRate(stats)
	for month, n := range months {
		stats.Monthly = append(stats.Monthly, models.MonthlyCount{Month: month, Count: n})
	}
	sort.Slice(stats.Monthly, func(a, b int) bool { return stats.Monthly[a].Month < stats.Monthly[b].Month })
	return stats, nil
}
