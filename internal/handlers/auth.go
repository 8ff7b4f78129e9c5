package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/staffhub/internal/middleware"
	"github.com/charlesng35/staffhub/internal/models"
	"github.com/charlesng35/staffhub/internal/services"
	"github.com/charlesng35/staffhub/pkg/errors"
	"github.com/charlesng35/staffhub/pkg/response"
)

// AuthHandler exposes the identity lifecycle over HTTP.
type AuthHandler struct {
	svc *services.AuthService
}

func NewAuthHandler(svc *services.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type signUpRequest struct {
	Email      string  `json:"email" validate:"required,email,max=320"`
	Password   string  `json:"password" validate:"required"`
	FullName   string  `json:"full_name" validate:"required,max=200"`
	Role       string  `json:"role" validate:"omitempty,staffhub_role"`
	Department *string `json:"department" validate:"omitempty,max=120"`
	Position   *string `json:"position" validate:"omitempty,max=120"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

type sessionResponse struct {
	AccessToken      string               `json:"access_token"`
	RefreshToken     string               `json:"refresh_token"`
	TokenType        string               `json:"token_type"`
	ExpiresIn        int                  `json:"expires_in"`
	AccessExpiresAt  time.Time            `json:"access_expires_at"`
	RefreshExpiresAt time.Time            `json:"refresh_expires_at"`
	Account          services.AccountView `json:"account"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type signUpResponse struct {
	Message string               `json:"message"`
	Account services.AccountView `json:"account"`
}

type confirmResponse struct {
	Message string               `json:"message"`
	Status  models.ProfileStatus `json:"status"`
	Session *sessionResponse     `json:"session,omitempty"`
}

type resendResponse struct {
	Message         string `json:"message"`
	AlreadyVerified bool   `json:"already_verified"`
}

// POST /api/auth/signup
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req signUpRequest
	if !bindAndValidate(c, &req) {
		return
	}

	meta := clientMetadata(c)
	result, err := h.svc.SignUp(requestContext(c), services.SignUpInput{
		Email:      req.Email,
		Password:   req.Password,
		FullName:   req.FullName,
		Role:       models.Role(req.Role),
		Department: req.Department,
		Position:   req.Position,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, signUpResponse{Message: result.Message, Account: result.Account})
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	meta := clientMetadata(c)
	session, err := h.svc.SignIn(requestContext(c), services.SignInInput{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, newSessionResponse(session))
}

// GET|POST /api/auth/confirm/:token
func (h *AuthHandler) ConfirmEmail(c *gin.Context) {
	result, err := h.svc.ConfirmEmail(requestContext(c), c.Param("token"), clientMetadata(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	payload := confirmResponse{Message: result.Message, Status: result.Status}
	if result.Session != nil {
		session := newSessionResponse(result.Session)
		payload.Session = &session
	}
	response.Success(c, http.StatusOK, payload)
}

// POST /api/auth/resend-confirmation
func (h *AuthHandler) ResendConfirmation(c *gin.Context) {
	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.svc.ResendConfirmation(requestContext(c), req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, resendResponse{Message: result.Message, AlreadyVerified: result.AlreadyVerified})
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			token = strings.TrimSpace(req.RefreshToken)
		}
	}
	if token == "" {
		response.Error(c, errors.ErrInvalidRefreshToken)
		return
	}

	session, err := h.svc.Refresh(requestContext(c), token, clientMetadata(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, newSessionResponse(session))
}

// POST /api/auth/signout
func (h *AuthHandler) SignOut(c *gin.Context) {
	if err := h.svc.SignOut(requestContext(c), currentAccountID(c), clientMetadata(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, messageResponse{Message: services.MessageSignedOut})
}

// POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}
	message := h.svc.ForgotPassword(requestContext(c), req.Email)
	response.Success(c, http.StatusOK, messageResponse{Message: message})
}

// POST /api/auth/reset-password/:token
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.svc.ResetPassword(requestContext(c), c.Param("token"), req.Password, clientMetadata(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, messageResponse{Message: services.MessagePasswordReset})
}

// PUT /api/auth/update-password
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	var req updatePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	session, err := h.svc.UpdatePassword(requestContext(c), currentAccountID(c), req.CurrentPassword, req.NewPassword, clientMetadata(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, newSessionResponse(session))
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	view, err := h.svc.Me(requestContext(c), currentAccountID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

func newSessionResponse(session *services.SessionResult) sessionResponse {
	expiresIn := int(time.Until(session.AccessExpiresAt).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return sessionResponse{
		AccessToken:      session.AccessToken,
		RefreshToken:     session.RefreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        expiresIn,
		AccessExpiresAt:  session.AccessExpiresAt,
		RefreshExpiresAt: session.RefreshExpiresAt,
		Account:          session.Account,
	}
}
