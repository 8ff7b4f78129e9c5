package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/staffhub/internal/auth"
	"github.com/charlesng35/staffhub/internal/models"
	"github.com/charlesng35/staffhub/internal/services"
	"github.com/charlesng35/staffhub/pkg/response"
)

// EmployeeHandler serves the administrator employee endpoints.
type EmployeeHandler struct {
	employees *services.EmployeeService
	auth      *services.AuthService
}

func NewEmployeeHandler(employees *services.EmployeeService, auth *services.AuthService) *EmployeeHandler {
	return &EmployeeHandler{employees: employees, auth: auth}
}

type updateEmployeeRequest struct {
	Role       *string `json:"role" validate:"omitempty,staffhub_role"`
	Status     *string `json:"status" validate:"omitempty,staffhub_status"`
	Department *string `json:"department" validate:"omitempty,max=120"`
	Position   *string `json:"position" validate:"omitempty,max=120"`
}

// GET /api/employees
func (h *EmployeeHandler) List(c *gin.Context) {
	page, per := normalizePage(parseIntQuery(c, "page", 1), parseIntQuery(c, "per_page", 50))

	views, total, err := h.employees.List(requestContext(c), services.EmployeeListOptions{
		Status:  models.ProfileStatus(c.Query("status")),
		Role:    models.Role(c.Query("role")),
		Page:    page,
		PerPage: per,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, views, response.NewMeta(page, per, total))
}

// GET /api/employees/:id
func (h *EmployeeHandler) Get(c *gin.Context) {
	view, err := h.employees.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// POST /api/employees/:id/approve
func (h *EmployeeHandler) Approve(c *gin.Context) {
	view, err := h.auth.ApproveEmployee(requestContext(c), c.Param("id"), currentAccountID(c), clientMetadata(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// POST /api/employees/:id/reject
func (h *EmployeeHandler) Reject(c *gin.Context) {
	view, err := h.auth.RejectEmployee(requestContext(c), c.Param("id"), currentAccountID(c), clientMetadata(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// PATCH /api/employees/:id
func (h *EmployeeHandler) Update(c *gin.Context) {
	var req updateEmployeeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	override := iauth.ProfileOverride{Department: req.Department, Position: req.Position}
	if req.Role != nil {
		role := models.Role(*req.Role)
		override.Role = &role
	}
	if req.Status != nil {
		status := models.ProfileStatus(*req.Status)
		override.Status = &status
	}

	view, err := h.employees.Override(requestContext(c), c.Param("id"), currentAccountID(c), override, clientMetadata(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}
