package repositories

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
	"github.com/yigit/earlyalert/internal/pkg/dberrors"
)

const (
	followUpOfIndex = "interventions_follow_up_of_idx"
	priorityRankSQL = "CASE priority WHEN 'Critical' THEN 4 WHEN 'High' THEN 3 WHEN 'Medium' THEN 2 ELSE 1 END"
)

var interventionColumns = []string{
	"intervention_id", "student_id", "advisor_id", "intervention_type_id",
	"title", "description", "priority", "status", "method", "location",
	"scheduled_at", "planned_duration_minutes", "completed_at",
	"outcome_assessment", "success_rating", "student_response", "duration_minutes",
	"follow_up_required", "follow_up_date", "follow_up_of", "reminded_for",
	"is_student_request", "notes", "created_by", "created_at", "updated_at",
}

// PostgresInterventionRepository handles intervention database operations
type PostgresInterventionRepository struct {
	db Querier
}

// NewPostgresInterventionRepository creates a new PostgresInterventionRepository
func NewPostgresInterventionRepository(db Querier) *PostgresInterventionRepository {
	return &PostgresInterventionRepository{db: db}
}

func scanIntervention(row pgx.Row) (*models.Intervention, error) {
	i := &models.Intervention{}
	err := row.Scan(
		&i.ID, &i.StudentID, &i.AdvisorID, &i.InterventionTypeID,
		&i.Title, &i.Description, &i.Priority, &i.Status, &i.Method, &i.Location,
		&i.ScheduledAt, &i.PlannedDurationMinutes, &i.CompletedAt,
		&i.OutcomeAssessment, &i.SuccessRating, &i.StudentResponse, &i.DurationMinutes,
		&i.FollowUpRequired, &i.FollowUpDate, &i.FollowUpOf, &i.RemindedFor,
		&i.IsStudentRequest, &i.Notes, &i.CreatedBy, &i.CreatedAt, &i.UpdatedAt,
	)
	return i, err
}

func (r *PostgresInterventionRepository) Create(ctx context.Context, i *models.Intervention) (int64, error) {
	sql, args, err := psql.Insert("interventions").
		Columns("student_id", "advisor_id", "intervention_type_id",
			"title", "description", "priority", "status", "method", "location",
			"scheduled_at", "planned_duration_minutes",
			"follow_up_of", "is_student_request", "notes", "created_by", "created_at", "updated_at").
		Values(i.StudentID, i.AdvisorID, i.InterventionTypeID,
			i.Title, i.Description, i.Priority, i.Status, i.Method, i.Location,
			i.ScheduledAt, i.PlannedDurationMinutes,
			i.FollowUpOf, i.IsStudentRequest, i.Notes, i.CreatedBy, i.CreatedAt, i.UpdatedAt).
		Suffix("RETURNING intervention_id").
		ToSql()
	if err != nil {
		return 0, buildFailed("create intervention", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&i.ID); err != nil {
		if dberrors.IsDuplicateConstraintError(err, followUpOfIndex) {
			return 0, apperrors.NewConflictError("a follow-up already exists for this intervention", err)
		}
		return 0, fail("create intervention", "intervention", err)
	}
	return i.ID, nil
}

func (r *PostgresInterventionRepository) GetByID(ctx context.Context, id int64) (*models.Intervention, error) {
	return r.getOne(ctx, "get intervention", id, "")
}

func (r *PostgresInterventionRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Intervention, error) {
	return r.getOne(ctx, "lock intervention", id, "FOR UPDATE")
}

func (r *PostgresInterventionRepository) getOne(ctx context.Context, op string, id int64, suffix string) (*models.Intervention, error) {
	q := psql.Select(interventionColumns...).From("interventions").Where(squirrel.Eq{"intervention_id": id})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, buildFailed(op, err)
	}

	i, err := scanIntervention(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if dberrors.IsNoRows(err) {
			return nil, apperrors.NewNotFoundError("intervention", id)
		}
		return nil, fail(op, "intervention", err)
	}
	return i, nil
}

func (r *PostgresInterventionRepository) Update(ctx context.Context, i *models.Intervention) error {
	sql, args, err := psql.Update("interventions").
		SetMap(map[string]interface{}{
			"title":              i.Title,
			"description":        i.Description,
			"priority":           i.Priority,
			"status":             i.Status,
			"method":             i.Method,
			"location":           i.Location,
			"scheduled_at":       i.ScheduledAt,
			"completed_at":       i.CompletedAt,
			"outcome_assessment": i.OutcomeAssessment,
			"success_rating":     i.SuccessRating,
			"student_response":   i.StudentResponse,
			"duration_minutes":   i.DurationMinutes,
			"follow_up_required": i.FollowUpRequired,
			"follow_up_date":     i.FollowUpDate,
			"reminded_for":       i.RemindedFor,
			"notes":              i.Notes,
			"updated_at":         i.UpdatedAt,
		}).
		Where(squirrel.Eq{"intervention_id": i.ID}).
		ToSql()
	if err != nil {
		return buildFailed("update intervention", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fail("update intervention", "intervention", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("intervention", i.ID)
	}
	return nil
}

// interventionPredicate turns an InterventionFilter into a squirrel predicate
func interventionPredicate(f InterventionFilter) squirrel.And {
	where := squirrel.And{}
	if f.StudentID != nil {
		where = append(where, squirrel.Eq{"student_id": *f.StudentID})
	}
	if f.AdvisorID != nil {
		where = append(where, squirrel.Eq{"advisor_id": *f.AdvisorID})
	}
	if len(f.Statuses) > 0 {
		where = append(where, squirrel.Eq{"status": f.Statuses})
	}
	if f.ScheduledFrom != nil {
		where = append(where, squirrel.GtOrEq{"scheduled_at": *f.ScheduledFrom})
	}
	if f.ScheduledBefore != nil {
		where = append(where, squirrel.Lt{"scheduled_at": *f.ScheduledBefore})
	}
	if f.ReminderDue {
		where = append(where, squirrel.Expr("scheduled_at IS NOT NULL AND reminded_for IS DISTINCT FROM scheduled_at"))
	}
	if f.FollowUpRequired != nil {
		where = append(where, squirrel.Eq{"follow_up_required": *f.FollowUpRequired})
	}
	if f.FollowUpDueBy != nil {
		where = append(where, squirrel.LtOrEq{"follow_up_date": *f.FollowUpDueBy})
	}
	if f.WithoutFollowUp {
		where = append(where, squirrel.Expr(
			"NOT EXISTS (SELECT 1 FROM interventions f WHERE f.follow_up_of = interventions.intervention_id)"))
	}
	if f.IsStudentRequest != nil {
		where = append(where, squirrel.Eq{"is_student_request": *f.IsStudentRequest})
	}
	if f.CreatedFrom != nil {
		where = append(where, squirrel.GtOrEq{"created_at": *f.CreatedFrom})
	}
	if f.CreatedTo != nil {
		where = append(where, squirrel.Lt{"created_at": *f.CreatedTo})
	}
	return where
}

func interventionOrder(o InterventionOrder) []string {
	switch o {
	case OrderPriority:
		return []string{priorityRankSQL + " DESC", "scheduled_at ASC NULLS LAST", "intervention_id ASC"}
	case OrderScheduled:
		return []string{"scheduled_at ASC NULLS LAST", "intervention_id ASC"}
	case OrderFollowUpDate:
		return []string{"follow_up_date ASC NULLS LAST", "intervention_id ASC"}
	default:
		return []string{"created_at DESC", "intervention_id DESC"}
	}
}

// buildInterventionList builds the page query; split out so the SQL can be asserted in tests
func buildInterventionList(f InterventionFilter, offset uint64, limit int) (string, []interface{}, error) {
	q := psql.Select(interventionColumns...).
		From("interventions").
		Where(interventionPredicate(f)).
		OrderBy(interventionOrder(f.Order)...).
		Offset(offset)
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return q.ToSql()
}

func (r *PostgresInterventionRepository) List(ctx context.Context, f InterventionFilter, offset uint64, limit int) ([]*models.Intervention, int64, error) {
	total, err := count(ctx, r.db, "count interventions",
		psql.Select("COUNT(*)").From("interventions").Where(interventionPredicate(f)))
	if err != nil {
		return nil, 0, err
	}

	sql, args, err := buildInterventionList(f, offset, limit)
	if err != nil {
		return nil, 0, buildFailed("list interventions", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fail("list interventions", "intervention", err)
	}
	defer rows.Close()

	out := []*models.Intervention{}
	for rows.Next() {
		i, err := scanIntervention(rows)
		if err != nil {
			return nil, 0, fail("scan intervention", "intervention", err)
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fail("iterate interventions", "intervention", err)
	}
	return out, total, nil
}

func (r *PostgresInterventionRepository) FindFollowUp(ctx context.Context, originalID int64) (*models.Intervention, error) {
	sql, args, err := psql.Select(interventionColumns...).
		From("interventions").
		Where(squirrel.Eq{"follow_up_of": originalID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, buildFailed("find follow-up", err)
	}

	i, err := scanIntervention(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if dberrors.IsNoRows(err) {
			return nil, apperrors.NewNotFoundError("follow-up of intervention", originalID)
		}
		return nil, fail("find follow-up", "intervention", err)
	}
	return i, nil
}

func statsPredicate(f StatsFilter) squirrel.And {
	where := squirrel.And{}
	if f.AdvisorID != nil {
		where = append(where, squirrel.Eq{"advisor_id": *f.AdvisorID})
	}
	if f.From != nil {
		where = append(where, squirrel.GtOrEq{"created_at": *f.From})
	}
	if f.To != nil {
		where = append(where, squirrel.Lt{"created_at": *f.To})
	}
	return where
}

func (r *PostgresInterventionRepository) Stats(ctx context.Context, f StatsFilter) (*models.InterventionStats, error) {
	where := statsPredicate(f)
	stats := models.NewInterventionStats()

	sql, args, err := psql.Select("status", "COUNT(*)").
		From("interventions").
		Where(where).
		GroupBy("status").
		ToSql()
	if err != nil {
		return nil, buildFailed("intervention stats", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fail("intervention stats", "intervention", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status models.InterventionStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fail("scan intervention stats", "intervention", err)
		}
		stats.ByStatus[status] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate intervention stats", "intervention", err)
	}

	sql, args, err = psql.Select(
		"COUNT(DISTINCT student_id)",
		"(AVG(success_rating) FILTER (WHERE status = 'Completed'))::float8",
		"(AVG(duration_minutes) FILTER (WHERE duration_minutes IS NOT NULL))::float8",
	).
		From("interventions").
		Where(where).
		ToSql()
	if err != nil {
		return nil, buildFailed("intervention averages", err)
	}
	if err := r.db.QueryRow(ctx, sql, args...).
		Scan(&stats.UniqueStudents, &stats.AvgSuccessRating, &stats.AvgDurationMinutes); err != nil {
		return nil, fail("intervention averages", "intervention", err)
	}

	stats.CompletionRate = CompletionRate(stats)

	byType, err := r.countBy(ctx, "COALESCE((SELECT t.name FROM intervention_types t WHERE t.intervention_type_id = interventions.intervention_type_id), '"+models.CustomInterventionType+"')", where)
	if err != nil {
		return nil, err
	}
	for _, kc := range byType {
		stats.ByType[kc.key] = kc.n
	}

	byPriority, err := r.countBy(ctx, "priority", where)
	if err != nil {
		return nil, err
	}
	for _, kc := range byPriority {
		stats.ByPriority[models.Priority(kc.key)] = kc.n
	}

	monthly, err := r.countBy(ctx, "to_char(date_trunc('month', created_at), 'YYYY-MM')", where)
	if err != nil {
		return nil, err
	}
	for _, kc := range monthly {
		stats.Monthly = append(stats.Monthly, models.MonthlyCount{Month: kc.key, Count: kc.n})
	}
	return stats, nil
}

type keyCount struct {
	key string
	n   int64
}

// countBy groups the filtered interventions by a text expression, ordered by key
func (r *PostgresInterventionRepository) countBy(ctx context.Context, expr string, where squirrel.And) ([]keyCount, error) {
	sql, args, err := psql.Select(expr+" AS k", "COUNT(*)").
		From("interventions").
		Where(where).
		GroupBy("k").
		OrderBy("k").
		ToSql()
	if err != nil {
		return nil, buildFailed("intervention breakdown", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fail("intervention breakdown", "intervention", err)
	}
	defer rows.Close()

	var out []keyCount
	for rows.Next() {
		var kc keyCount
		if err := rows.Scan(&kc.key, &kc.n); err != nil {
			return nil, fail("scan intervention breakdown", "intervention", err)
		}
		out = append(out, kc)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate intervention breakdown", "intervention", err)
	}
	return out, nil
}

// CompletionRate is completed over everything that left triage
func CompletionRate(s *models.InterventionStats) float64 {
	actionable := s.Total - s.ByStatus[models.StatusPending]
	if actionable <= 0 {
		return 0
	}
	return float64(s.ByStatus[models.StatusCompleted]) / float64(actionable)
}

// PostgresInterventionTypeRepository handles intervention template operations
type PostgresInterventionTypeRepository struct {
	db Querier
}

// NewPostgresInterventionTypeRepository creates a new PostgresInterventionTypeRepository
func NewPostgresInterventionTypeRepository(db Querier) *PostgresInterventionTypeRepository {
	return &PostgresInterventionTypeRepository{db: db}
}

var interventionTypeColumns = []string{
	"intervention_type_id", "name", "category", "description",
	"default_priority", "default_duration_minutes", "is_active",
}

func scanInterventionType(row pgx.Row) (*models.InterventionType, error) {
	t := &models.InterventionType{}
	err := row.Scan(&t.ID, &t.Name, &t.Category, &t.Description, &t.DefaultPriority, &t.DefaultDurationMinutes, &t.IsActive)
	return t, err
}

func (r *PostgresInterventionTypeRepository) Create(ctx context.Context, t *models.InterventionType) (int64, error) {
	sql, args, err := psql.Insert("intervention_types").
		Columns("name", "category", "description", "default_priority", "default_duration_minutes", "is_active").
		Values(t.Name, t.Category, t.Description, t.DefaultPriority, t.DefaultDurationMinutes, t.IsActive).
		Suffix("RETURNING intervention_type_id").
		ToSql()
	if err != nil {
		return 0, buildFailed("create intervention type", err)
	}
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&t.ID); err != nil {
		if dberrors.IsUniqueViolation(err) {
			return 0, apperrors.NewConflictError("intervention type "+t.Name+" already exists", err)
		}
		return 0, fail("create intervention type", "intervention type", err)
	}
	return t.ID, nil
}

func (r *PostgresInterventionTypeRepository) GetByID(ctx context.Context, id int64) (*models.InterventionType, error) {
	return r.getOne(ctx, "get intervention type", squirrel.Eq{"intervention_type_id": id}, id)
}

func (r *PostgresInterventionTypeRepository) GetByName(ctx context.Context, name string) (*models.InterventionType, error) {
	return r.getOne(ctx, "get intervention type by name", squirrel.Eq{"name": name}, name)
}

func (r *PostgresInterventionTypeRepository) getOne(ctx context.Context, op string, where squirrel.Sqlizer, key any) (*models.InterventionType, error) {
	sql, args, err := psql.Select(interventionTypeColumns...).From("intervention_types").Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, buildFailed(op, err)
	}
	t, err := scanInterventionType(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if dberrors.IsNoRows(err) {
			return nil, apperrors.NewNotFoundError("intervention type", key)
		}
		return nil, fail(op, "intervention type", err)
	}
	return t, nil
}

func (r *PostgresInterventionTypeRepository) List(ctx context.Context, activeOnly bool) ([]*models.InterventionType, error) {
	q := psql.Select(interventionTypeColumns...).From("intervention_types").OrderBy("category ASC", "name ASC")
	if activeOnly {
		q = q.Where(squirrel.Eq{"is_active": true})
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, buildFailed("list intervention types", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fail("list intervention types", "intervention type", err)
	}
	defer rows.Close()

	out := []*models.InterventionType{}
	for rows.Next() {
		t, err := scanInterventionType(rows)
		if err != nil {
			return nil, fail("scan intervention type", "intervention type", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate intervention types", "intervention type", err)
	}
	return out, nil
}
