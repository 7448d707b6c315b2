// internal/handlers/request.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/devmarket/devmarket-backend/internal/services"
	"github.com/devmarket/devmarket-backend/internal/utils"
)

// RequestHandler exposes the purchase-request workflow. Every route requires
// auth; party checks happen in the service layer.
type RequestHandler struct {
	requestService *services.RequestService
}

func NewRequestHandler(requestService *services.RequestService) *RequestHandler {
	return &RequestHandler{
		requestService: requestService,
	}
}

// POST /projects/:id/interest
func (h *RequestHandler) ExpressInterest(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid project ID", nil)
		return
	}

	var req services.ExpressInterestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	request, err := h.requestService.ExpressInterest(projectID, userID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.CreatedResponse(c, request)
}

// POST /projects/:id/buy-now
func (h *RequestHandler) BuyNow(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid project ID", nil)
		return
	}

	result, err := h.requestService.BuyNow(projectID, userID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}

// GET /requests
func (h *RequestHandler) GetRequests(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	role := c.Query("role")

	requests, total, err := h.requestService.ListRequests(userID, role, params)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(requests, total, params))
}

// GET /requests/:id
func (h *RequestHandler) GetRequest(c *gin.Context) {
	userID, requestID, ok := requestRouteIDs(c)
	if !ok {
		return
	}

	request, err := h.requestService.GetRequest(requestID, userID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, request)
}

// POST /requests/:id/propose-terms
func (h *RequestHandler) ProposeTerms(c *gin.Context) {
	userID, requestID, ok := requestRouteIDs(c)
	if !ok {
		return
	}

	var req services.ProposeTermsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	request, err := h.requestService.ProposeTerms(requestID, userID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, request)
}

// POST /requests/:id/accept-terms
func (h *RequestHandler) AcceptTerms(c *gin.Context) {
	userID, requestID, ok := requestRouteIDs(c)
	if !ok {
		return
	}

	var req services.AcceptTermsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	request, err := h.requestService.AcceptTerms(requestID, userID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, request)
}

// POST /requests/:id/withdraw
func (h *RequestHandler) WithdrawInterest(c *gin.Context) {
	userID, requestID, ok := requestRouteIDs(c)
	if !ok {
		return
	}

	var req services.CloseRequestRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	request, err := h.requestService.WithdrawInterest(requestID, userID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, request)
}

// POST /requests/:id/decline
func (h *RequestHandler) DeclineInterest(c *gin.Context) {
	userID, requestID, ok := requestRouteIDs(c)
	if !ok {
		return
	}

	var req services.CloseRequestRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	request, err := h.requestService.DeclineInterest(requestID, userID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, request)
}

// POST /requests/:id/checkout
func (h *RequestHandler) InitiateCheckout(c *gin.Context) {
	userID, requestID, ok := requestRouteIDs(c)
	if !ok {
		return
	}

	result, err := h.requestService.InitiateCheckout(requestID, userID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}

// requestRouteIDs pulls the caller id and the :id path parameter, writing the
// error response itself when either is missing.
func requestRouteIDs(c *gin.Context) (userID, requestID uuid.UUID, ok bool) {
	userID, ok = currentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, uuid.Nil, false
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid request ID", nil)
		return uuid.Nil, uuid.Nil, false
	}

	return userID, requestID, true
}
