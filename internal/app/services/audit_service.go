package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/yigit/earlyalert/internal/app/auth"
	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/repositories"
)

// AuditRecord is one entry to append. Before and After are encoded as JSON.
type AuditRecord struct {
	Actor      auth.Actor
	Action     string
	EntityType models.EntityType
	EntityID   int64
	Before     any
	After      any
}

// AuditService defines the interface for audit operations. There is no
// update or delete.
type AuditService interface {
	// RecordTx appends inside the caller's unit of work
	RecordTx(ctx context.Context, repos *repositories.Repositories, rec AuditRecord) error
	// Record appends in its own unit of work
	Record(ctx context.Context, rec AuditRecord) error
	ListForEntity(ctx context.Context, actor auth.Actor, entityType models.EntityType, entityID int64) ([]*models.AuditLogEntry, error)
	ListRecent(ctx context.Context, actor auth.Actor, filter repositories.AuditFilter, page, size int) ([]*models.AuditLogEntry, int64, error)
}

type auditServiceImpl struct {
	store  repositories.Store
	authz  *auth.AuthorizationService
	now    Clock
	logger zerolog.Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(store repositories.Store, authz *auth.AuthorizationService, logger zerolog.Logger) AuditService {
	return &auditServiceImpl{
		store:  store,
		authz:  authz,
		now:    systemClock,
		logger: logger,
	}
}

func (s *auditServiceImpl) RecordTx(ctx context.Context, repos *repositories.Repositories, rec AuditRecord) error {
	before, err := snapshot(rec.Before)
	if err != nil {
		return err
	}
	after, err := snapshot(rec.After)
	if err != nil {
		return err
	}

	entry := &models.AuditLogEntry{
		ActorID:    rec.Actor.AuditID(),
		Action:     rec.Action,
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		Before:     before,
		After:      after,
		CreatedAt:  s.now(),
	}
	_, err = repos.Audit.Append(ctx, entry)
	return err
}

func (s *auditServiceImpl) Record(ctx context.Context, rec AuditRecord) error {
	return s.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		return s.RecordTx(ctx, r, rec)
	})
}

func (s *auditServiceImpl) ListForEntity(ctx context.Context, actor auth.Actor, entityType models.EntityType, entityID int64) ([]*models.AuditLogEntry, error) {
	if err := s.authz.Require(actor, auth.CapReadAudit); err != nil {
		return nil, err
	}
	return s.store.Repos().Audit.ListForEntity(ctx, entityType, entityID)
}

func (s *auditServiceImpl) ListRecent(ctx context.Context, actor auth.Actor, filter repositories.AuditFilter, page, size int) ([]*models.AuditLogEntry, int64, error) {
	if err := s.authz.Require(actor, auth.CapReadAudit); err != nil {
		return nil, 0, err
	}
	offset, limit := pageBounds(page, size)
	return s.store.Repos().Audit.List(ctx, filter, offset, limit)
}
