package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"subtrack/internal/apperrors"
	"subtrack/internal/models"
)

type DepartmentRepository struct {
	db *gorm.DB
}

func NewDepartmentRepository(db *gorm.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

func (r *DepartmentRepository) Get(ctx context.Context, id uint) (*models.Department, error) {
	var d models.Department
	err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("department")
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DepartmentRepository) List(ctx context.Context) ([]models.Department, error) {
	var out []models.Department
	err := r.db.WithContext(ctx).Preload("Managers").Order("name").Find(&out).Error
	return out, err
}

// ListForManager returns the departments the user is assigned to.
func (r *DepartmentRepository) ListForManager(ctx context.Context, userID string) ([]models.Department, error) {
	var out []models.Department
	err := r.db.WithContext(ctx).
		Joins("JOIN department_managers dm ON dm.department_id = departments.id").
		Where("dm.user_id = ?", userID).
		Order("name").
		Find(&out).Error
	return out, err
}

func (r *DepartmentRepository) ManagerAssigned(ctx context.Context, deptID uint, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("department_managers").
		Where("department_id = ? AND user_id = ?", deptID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *DepartmentRepository) Create(ctx context.Context, d *models.Department) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *DepartmentRepository) Update(ctx context.Context, d *models.Department) error {
	return r.db.WithContext(ctx).Save(d).Error
}

// SetManagers replaces the assignment set.
func (r *DepartmentRepository) SetManagers(ctx context.Context, d *models.Department, managers []models.User) error {
	return r.db.WithContext(ctx).Model(d).Association("Managers").Replace(managers)
}

// Delete removes a department; it refuses while any request, live or
// soft-deleted, still references it.
func (r *DepartmentRepository) Delete(ctx context.Context, id uint) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Request{}).
		Where("department_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return apperrors.InvalidState("department still has requests")
	}
	res := r.db.WithContext(ctx).Delete(&models.Department{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("department")
	}
	return nil
}
