// internal/services/project_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/devmarket/devmarket-backend/internal/apperrors"
	"github.com/devmarket/devmarket-backend/internal/models"
	"github.com/devmarket/devmarket-backend/internal/utils"
)

// ProjectService is a thin CRUD wrapper around the Project entity. The
// workflow engine treats Project as an external collaborator: it reads the
// for-sale flag and price here, and the transfer coordinator mutates
// ownership on completion.
type ProjectService struct {
	db *gorm.DB
}

type CreateProjectRequest struct {
	Title          string                 `json:"title" validate:"required,min=3,max=255"`
	Description    string                 `json:"description" validate:"required,min=10"`
	Category       string                 `json:"category" validate:"required"`
	TechStack      map[string]interface{} `json:"tech_stack,omitempty"`
	Price          float64                `json:"price" validate:"required,min=0.01"`
	MonthlyRevenue float64                `json:"monthly_revenue" validate:"min=0"`
	MonthlyProfit  float64                `json:"monthly_profit"`
}

type UpdateProjectRequest struct {
	Title          string                 `json:"title,omitempty" validate:"omitempty,min=3,max=255"`
	Description    string                 `json:"description,omitempty" validate:"omitempty,min=10"`
	Category       string                 `json:"category,omitempty"`
	TechStack      map[string]interface{} `json:"tech_stack,omitempty"`
	Price          *float64               `json:"price,omitempty" validate:"omitempty,min=0.01"`
	MonthlyRevenue *float64               `json:"monthly_revenue,omitempty" validate:"omitempty,min=0"`
	MonthlyProfit  *float64               `json:"monthly_profit,omitempty"`
	IsForSale      *bool                  `json:"is_for_sale,omitempty"`
}

type ProjectSearchParams struct {
	utils.PaginationParams
	Category string
	ForSale  *bool
	OwnerID  *uuid.UUID
	PriceMin *float64
	PriceMax *float64
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{db: db}
}

func (s *ProjectService) Create(ownerID uuid.UUID, req *CreateProjectRequest) (*models.Project, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.NewValidation("invalid project: %v", err)
	}

	project := &models.Project{
		OwnerID:        ownerID,
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		TechStack:      models.JSONB(req.TechStack),
		Price:          req.Price,
		MonthlyRevenue: req.MonthlyRevenue,
		MonthlyProfit:  req.MonthlyProfit,
		IsForSale:      true,
	}

	if err := s.db.Create(project).Error; err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return project, nil
}

func (s *ProjectService) Get(id uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := s.db.Preload("Owner").First(&project, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("project")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &project, nil
}

func (s *ProjectService) List(params ProjectSearchParams) ([]models.Project, int64, error) {
	query := s.db.Model(&models.Project{})

	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}
	if params.ForSale != nil {
		query = query.Where("is_for_sale = ?", *params.ForSale)
	}
	if params.OwnerID != nil {
		query = query.Where("owner_id = ?", *params.OwnerID)
	}
	if params.PriceMin != nil {
		query = query.Where("price >= ?", *params.PriceMin)
	}
	if params.PriceMax != nil {
		query = query.Where("price <= ?", *params.PriceMax)
	}
	if params.Search != "" {
		search := "%" + params.Search + "%"
		query = query.Where("title LIKE ? OR description LIKE ?", search, search)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	query = utils.ApplySort(query, params.PaginationParams, []string{"created_at", "price", "monthly_revenue"})
	query = utils.ApplyPagination(query, params.PaginationParams)

	var projects []models.Project
	if err := query.Find(&projects).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch projects: %w", err)
	}

	return projects, total, nil
}

func (s *ProjectService) Update(id, ownerID uuid.UUID, req *UpdateProjectRequest) (*models.Project, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.NewValidation("invalid project update: %v", err)
	}

	project, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != ownerID {
		return nil, apperrors.NewNotFound("project")
	}

	updates := map[string]interface{}{}
	if req.Title != "" {
		updates["title"] = req.Title
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.Category != "" {
		updates["category"] = req.Category
	}
	if req.TechStack != nil {
		updates["tech_stack"] = models.JSONB(req.TechStack)
	}
	if req.Price != nil {
		updates["price"] = *req.Price
	}
	if req.MonthlyRevenue != nil {
		updates["monthly_revenue"] = *req.MonthlyRevenue
	}
	if req.MonthlyProfit != nil {
		updates["monthly_profit"] = *req.MonthlyProfit
	}
	if req.IsForSale != nil {
		updates["is_for_sale"] = *req.IsForSale
	}

	if len(updates) > 0 {
		if err := s.db.Model(project).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update project: %w", err)
		}
	}

	return s.Get(id)
}
