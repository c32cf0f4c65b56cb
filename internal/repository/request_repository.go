// Package repository implements the persistence contracts over GORM.
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"subtrack/internal/apperrors"
	"subtrack/internal/models"
)

type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func notDeleted(db *gorm.DB) *gorm.DB {
	return db.Where("deleted_at IS NULL")
}

func (r *RequestRepository) Get(ctx context.Context, id uint) (*models.Request, error) {
	var req models.Request
	err := r.db.WithContext(ctx).Scopes(notDeleted).First(&req, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("request")
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *RequestRepository) ListByDepartment(ctx context.Context, deptID uint) ([]models.Request, error) {
	var out []models.Request
	err := r.db.WithContext(ctx).Scopes(notDeleted).
		Where("department_id = ?", deptID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

func (r *RequestRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.Request, error) {
	var out []models.Request
	err := r.db.WithContext(ctx).Scopes(notDeleted).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

// ListVisible returns the requests the user may see: staff see everything,
// managers see their own.
func (r *RequestRepository) ListVisible(ctx context.Context, u *models.User) ([]models.Request, error) {
	q := r.db.WithContext(ctx).Scopes(notDeleted).Preload("Department").Order("created_at desc")
	if !u.IsStaff() {
		q = q.Where("requester_id = ?", u.ID)
	}
	var out []models.Request
	err := q.Find(&out).Error
	return out, err
}

// ListAll returns every live request, for analytics and exports.
func (r *RequestRepository) ListAll(ctx context.Context) ([]models.Request, error) {
	var out []models.Request
	err := r.db.WithContext(ctx).Scopes(notDeleted).Find(&out).Error
	return out, err
}

// ListSnapshot returns every row including soft-deleted ones, for backups.
func (r *RequestRepository) ListSnapshot(ctx context.Context) ([]models.Request, error) {
	var out []models.Request
	err := r.db.WithContext(ctx).Find(&out).Error
	return out, err
}

// ListRenewingOn finds ACTIVE requests whose renewal date falls on the given
// day, for the reminder scan.
func (r *RequestRepository) ListRenewingOn(ctx context.Context, day time.Time) ([]models.Request, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	var out []models.Request
	err := r.db.WithContext(ctx).Scopes(notDeleted).
		Where("status = ?", models.StatusActive).
		Where("renewal_date >= ? AND renewal_date < ?", start, end).
		Find(&out).Error
	return out, err
}

func (r *RequestRepository) Create(ctx context.Context, req *models.Request) error {
	return r.db.WithContext(ctx).Create(req).Error
}

// Update saves req and returns the row state from before the write. The
// read and write run in one transaction so the previous state is the one
// actually replaced.
func (r *RequestRepository) Update(ctx context.Context, req *models.Request) (*models.Request, error) {
	var prev models.Request
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&prev, "id = ?", req.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("request")
			}
			return err
		}
		return tx.Save(req).Error
	})
	if err != nil {
		return nil, err
	}
	return &prev, nil
}

// SoftDeleteAll stamps deleted_at on all ids in one statement, so the batch
// is atomic.
func (r *RequestRepository) SoftDeleteAll(ctx context.Context, ids []uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Request{}).
		Where("id IN ? AND deleted_at IS NULL", ids).
		Update("deleted_at", at).Error
}
