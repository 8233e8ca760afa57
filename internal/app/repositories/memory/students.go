package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/repositories"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
)

type userRepo struct{ sc *scope }

func (r *userRepo) Create(_ context.Context, u *models.User) (int64, error) {
	err := r.sc.write("users.create", func(st *state) error {
		for _, existing := range st.users {
			if strings.EqualFold(existing.Email, u.Email) {
				return apperrors.NewConflictError("a user with this email already exists", nil)
			}
		}
		u.ID = st.next("users")
		if u.CreatedAt.IsZero() {
			u.CreatedAt = r.sc.now()
		}
		st.users[u.ID] = *u
		return nil
	})
	return u.ID, err
}

func (r *userRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	var out *models.User
	err := r.sc.read(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return apperrors.NewNotFoundError("user", id)
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	var out *models.User
	err := r.sc.read(func(st *state) error {
		for _, u := range st.users {
			if strings.EqualFold(u.Email, email) {
				u := u
				out = &u
				return nil
			}
		}
		return apperrors.NewNotFoundError("user", email)
	})
	return out, err
}

type termRepo struct{ sc *scope }

func (r *termRepo) Upsert(_ context.Context, t *models.Term) error {
	return r.sc.write("terms.upsert", func(st *state) error {
		st.terms[t.ID] = *t
		return nil
	})
}

func (r *termRepo) GetByID(_ context.Context, id string) (*models.Term, error) {
	var out *models.Term
	err := r.sc.read(func(st *state) error {
		t, ok := st.terms[id]
		if !ok {
			return apperrors.NewNotFoundError("term", id)
		}
		out = &t
		return nil
	})
	return out, err
}

func (r *termRepo) List(_ context.Context) ([]*models.Term, error) {
	out := []*models.Term{}
	err := r.sc.read(func(st *state) error {
		for _, t := range st.terms {
			t := t
			out = append(out, &t)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, err
}

type studentRepo struct{ sc *scope }

func (r *studentRepo) Create(_ context.Context, s *models.Student) (int64, error) {
	err := r.sc.write("students.create", func(st *state) error {
		for _, existing := range st.students {
			if existing.BannerID == s.BannerID {
				return apperrors.NewConflictError("a student with banner id "+s.BannerID+" already exists", nil)
			}
		}
		if s.PrimaryAdvisorID != nil {
			if _, ok := st.users[*s.PrimaryAdvisorID]; !ok {
				return apperrors.NewNotFoundError("user", *s.PrimaryAdvisorID)
			}
		}
		if s.UserID != nil {
			if _, ok := st.users[*s.UserID]; !ok {
				return apperrors.NewNotFoundError("user", *s.UserID)
			}
		}
		s.ID = st.next("students")
		now := r.sc.now()
		s.CreatedAt, s.UpdatedAt = now, now
		st.students[s.ID] = *s
		return nil
	})
	return s.ID, err
}

func (r *studentRepo) GetByID(_ context.Context, id int64) (*models.Student, error) {
	var out *models.Student
	err := r.sc.read(func(st *state) error {
		s, ok := st.students[id]
		if !ok {
			return apperrors.NewNotFoundError("student", id)
		}
		out = &s
		return nil
	})
	return out, err
}

// GetByIDForUpdate needs no extra locking: transactions are already serialized
func (r *studentRepo) GetByIDForUpdate(ctx context.Context, id int64) (*models.Student, error) {
	return r.GetByID(ctx, id)
}

func (r *studentRepo) GetByUserID(_ context.Context, userID int64) (*models.Student, error) {
	var out *models.Student
	err := r.sc.read(func(st *state) error {
		for _, s := range st.students {
			if s.UserID != nil && *s.UserID == userID {
				s := s
				out = &s
				return nil
			}
		}
		return apperrors.NewNotFoundError("student", userID)
	})
	return out, err
}

func matchStudent(f repositories.StudentFilter, s models.Student) bool {
	if f.EnrollmentStatus != "" && s.EnrollmentStatus != f.EnrollmentStatus {
		return false
	}
	if f.PrimaryAdvisorID != nil && (s.PrimaryAdvisorID == nil || *s.PrimaryAdvisorID != *f.PrimaryAdvisorID) {
		return false
	}
	if f.Classification != "" && s.Classification != f.Classification {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		hay := strings.ToLower(strings.Join([]string{s.FirstName, s.LastName, s.BannerID, s.Email}, " "))
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}

func (r *studentRepo) List(_ context.Context, f repositories.StudentFilter, offset uint64, limit int) ([]*models.Student, int64, error) {
	all := []*models.Student{}
	err := r.sc.read(func(st *state) error {
		for _, s := range st.students {
			if matchStudent(f, s) {
				s := s
				all = append(all, &s)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].LastName != all[j].LastName {
			return all[i].LastName < all[j].LastName
		}
		if all[i].FirstName != all[j].FirstName {
			return all[i].FirstName < all[j].FirstName
		}
		return all[i].ID < all[j].ID
	})
	return page(all, offset, limit), int64(len(all)), nil
}

func (r *studentRepo) UpdateEnrollmentStatus(_ context.Context, id int64, status models.EnrollmentStatus, at time.Time) error {
	return r.sc.write("students.update", func(st *state) error {
		s, ok := st.students[id]
		if !ok {
			return apperrors.NewNotFoundError("student", id)
		}
		s.EnrollmentStatus = status
		s.UpdatedAt = at
		st.students[id] = s
		return nil
	})
}

type interventionTypeRepo struct{ sc *scope }

func (r *interventionTypeRepo) Create(_ context.Context, t *models.InterventionType) (int64, error) {
	err := r.sc.write("intervention_types.create", func(st *state) error {
		for _, existing := range st.types {
			if existing.Name == t.Name {
				return apperrors.NewConflictError("intervention type "+t.Name+" already exists", nil)
			}
		}
		t.ID = st.next("intervention_types")
		st.types[t.ID] = *t
		return nil
	})
	return t.ID, err
}

func (r *interventionTypeRepo) GetByID(_ context.Context, id int64) (*models.InterventionType, error) {
	var out *models.InterventionType
	err := r.sc.read(func(st *state) error {
		t, ok := st.types[id]
		if !ok {
			return apperrors.NewNotFoundError("intervention type", id)
		}
		out = &t
		return nil
	})
	return out, err
}

func (r *interventionTypeRepo) GetByName(_ context.Context, name string) (*models.InterventionType, error) {
	var out *models.InterventionType
	err := r.sc.read(func(st *state) error {
		for _, t := range st.types {
			if t.Name == name {
				t := t
				out = &t
				return nil
			}
		}
		return apperrors.NewNotFoundError("intervention type", name)
	})
	return out, err
}

func (r *interventionTypeRepo) List(_ context.Context, activeOnly bool) ([]*models.InterventionType, error) {
	out := []*models.InterventionType{}
	err := r.sc.read(func(st *state) error {
		for _, t := range st.types {
			if activeOnly && !t.IsActive {
				continue
			}
			t := t
			out = append(out, &t)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, err
}
