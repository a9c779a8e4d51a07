package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-tracker-api/internal/models"
)

// StudentRepository provides access to student records.
type StudentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Student, error)
	ListByClass(ctx context.Context, className string) ([]models.Student, error)
	List(ctx context.Context, filter StudentFilter) ([]models.Student, int64, error)
	Create(ctx context.Context, student *models.Student) error
	ExistsByCodeOrEmail(ctx context.Context, code, email string) (bool, error)
}

// StudentFilter narrows paginated student listings.
type StudentFilter struct {
	ClassName string
	Search    string
	Page      int
	PageSize  int
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) GetByID(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

// ListByClass returns the students of a class ordered by name. An empty class
// name returns every student.
func (r *studentRepository) ListByClass(ctx context.Context, className string) ([]models.Student, error) {
	query := r.db.WithContext(ctx).Model(&models.Student{})
	if trimmed := strings.TrimSpace(className); trimmed != "" {
		query = query.Where("class_name = ?", trimmed)
	}

	var students []models.Student
	if err := query.Order("name ASC").Order("id ASC").Find(&students).Error; err != nil {
		return nil, err
	}

	return students, nil
}

func (r *studentRepository) List(ctx context.Context, filter StudentFilter) ([]models.Student, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Student{})
	if className := strings.TrimSpace(filter.ClassName); className != "" {
		query = query.Where("class_name = ?", className)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	var students []models.Student
	err := query.Order("name ASC").Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&students).Error
	if err != nil {
		return nil, 0, err
	}

	return students, total, nil
}

func (r *studentRepository) Create(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Create(student).Error
}

func (r *studentRepository) ExistsByCodeOrEmail(ctx context.Context, code, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Student{}).
		Where("code = ? OR LOWER(email) = ?", code, strings.ToLower(email)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
