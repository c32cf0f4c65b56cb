package repository

import (
	"context"

	"gorm.io/gorm"

	"subtrack/internal/models"
)

type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Create(ctx context.Context, c *models.RequestComment) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CommentRepository) ListByRequest(ctx context.Context, requestID uint) ([]models.RequestComment, error) {
	var out []models.RequestComment
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Preload("Author").
		Order("created_at asc").
		Find(&out).Error
	return out, err
}
