// internal/handlers/project.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/devmarket/devmarket-backend/internal/services"
	"github.com/devmarket/devmarket-backend/internal/utils"
)

type ProjectHandler struct {
	projectService *services.ProjectService
}

func NewProjectHandler(projectService *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
	}
}

// GET /projects
func (h *ProjectHandler) GetProjects(c *gin.Context) {
	params := services.ProjectSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
		Category:         c.Query("category"),
	}

	if forSale := c.Query("for_sale"); forSale != "" {
		if value, err := strconv.ParseBool(forSale); err == nil {
			params.ForSale = &value
		}
	}
	if priceMin := c.Query("price_min"); priceMin != "" {
		if value, err := strconv.ParseFloat(priceMin, 64); err == nil {
			params.PriceMin = &value
		}
	}
	if priceMax := c.Query("price_max"); priceMax != "" {
		if value, err := strconv.ParseFloat(priceMax, 64); err == nil {
			params.PriceMax = &value
		}
	}

	projects, total, err := h.projectService.List(params)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(projects, total, params.PaginationParams))
}

// GET /projects/:id
func (h *ProjectHandler) GetProject(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid project ID", nil)
		return
	}

	project, err := h.projectService.Get(id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, project)
}

// POST /projects
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	project, err := h.projectService.Create(userID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.CreatedResponse(c, project)
}

// PUT /projects/:id
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid project ID", nil)
		return
	}

	var req services.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	project, err := h.projectService.Update(id, userID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, project)
}
