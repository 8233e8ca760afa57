// Package memory provides an in-memory transactional Store. Transactions are
// serialized by one lock and commit by swapping in a modified copy of the
// state, so a failed unit of work leaves nothing behind.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/repositories"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
)

type state struct {
	seq           map[string]int64
	users         map[int64]models.User
	terms         map[string]models.Term
	students      map[int64]models.Student
	assessments   map[int64]models.RiskAssessment
	types         map[int64]models.InterventionType
	interventions map[int64]models.Intervention
	notifications map[int64]models.Notification
	emails        map[int64]models.EmailMessage
	audit         []models.AuditLogEntry
}

func newState() *state {
	return &state{
		seq:           map[string]int64{},
		users:         map[int64]models.User{},
		terms:         map[string]models.Term{},
		students:      map[int64]models.Student{},
		assessments:   map[int64]models.RiskAssessment{},
		types:         map[int64]models.InterventionType{},
		interventions: map[int64]models.Intervention{},
		notifications: map[int64]models.Notification{},
		emails:        map[int64]models.EmailMessage{},
	}
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// clone copies every table. Entity values are copied by value; their pointer
// fields are never mutated in place, only replaced.
func (s *state) clone() *state {
	return &state{
		seq:           cloneMap(s.seq),
		users:         cloneMap(s.users),
		terms:         cloneMap(s.terms),
		students:      cloneMap(s.students),
		assessments:   cloneMap(s.assessments),
		types:         cloneMap(s.types),
		interventions: cloneMap(s.interventions),
		notifications: cloneMap(s.notifications),
		emails:        cloneMap(s.emails),
		audit:         append([]models.AuditLogEntry(nil), s.audit...),
	}
}

func (s *state) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// Store is the in-memory implementation of repositories.Store
type Store struct {
	mu     sync.RWMutex
	state  *state
	faults map[string]error
	now    func() time.Time
}

// New creates an empty Store
func New() *Store {
	return &Store{
		state:  newState(),
		faults: map[string]error{},
		now:    time.Now,
	}
}

// FailOn makes the next call of op (for example "notifications.create")
// return err, which lets tests exercise rollback paths.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

// fault consumes a one-shot injected error. Callers hold s.mu.
func (s *Store) fault(op string) error {
	if err, ok := s.faults[op]; ok {
		delete(s.faults, op)
		return apperrors.NewStorageError(op, err)
	}
	return nil
}

// Repos returns autocommit repositories over the committed state
func (s *Store) Repos() *repositories.Repositories {
	return s.bind(&scope{store: s})
}

// WithTx runs fn against a private copy of the state and publishes the copy
// only when fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, r *repositories.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewStorageError("begin transaction", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.state.clone()
	if err := fn(ctx, s.bind(&scope{store: s, tx: tx})); err != nil {
		return err
	}
	if err := s.fault("commit"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperrors.NewStorageError("commit transaction", err)
	}
	s.state = tx
	return nil
}

func (s *Store) bind(sc *scope) *repositories.Repositories {
	return &repositories.Repositories{
		Users:             &userRepo{sc},
		Terms:             &termRepo{sc},
		Students:          &studentRepo{sc},
		Assessments:       &assessmentRepo{sc},
		InterventionTypes: &interventionTypeRepo{sc},
		Interventions:     &interventionRepo{sc},
		Notifications:     &notificationRepo{sc},
		Emails:            &emailRepo{sc},
		Audit:             &auditRepo{sc},
	}
}

// scope is either bound to a transaction copy or to the committed state
type scope struct {
	store *Store
	tx    *state
}

func (sc *scope) read(fn func(st *state) error) error {
	if sc.tx != nil {
		return fn(sc.tx)
	}
	sc.store.mu.RLock()
	defer sc.store.mu.RUnlock()
	return fn(sc.store.state)
}

func (sc *scope) write(op string, fn func(st *state) error) error {
	if sc.tx != nil {
		if err := sc.store.fault(op); err != nil {
			return err
		}
		return fn(sc.tx)
	}

	sc.store.mu.Lock()
	defer sc.store.mu.Unlock()
	if err := sc.store.fault(op); err != nil {
		return err
	}
	next := sc.store.state.clone()
	if err := fn(next); err != nil {
		return err
	}
	sc.store.state = next
	return nil
}

func (sc *scope) now() time.Time {
	return sc.store.now()
}

var _ repositories.Store = (*Store)(nil)

// page applies offset/limit to an already sorted slice. limit <= 0 means all.
func page[T any](items []T, offset uint64, limit int) []T {
	if offset >= uint64(len(items)) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
