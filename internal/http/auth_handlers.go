package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"meatshop/internal/service"
)

type registerReq struct {
	Name     string `json:"name" binding:"required,min=2,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Phone    string `json:"phone" binding:"omitempty,phone"`
}

// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param input body registerReq true "User"
// @Success 201 {object} envelope
// @Failure 400 {object} envelope
// @Failure 409 {object} envelope
// @Router /api/auth/register [post]
func (s *Server) register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Validation failed", bindingErrors(err))
		return
	}
	token, u, err := s.auth.Register(c, service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		s.respondError(c, err, "User not found")
		return
	}
	respond(c, http.StatusCreated, "User registered successfully", gin.H{"token": token, "user": u})
}

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param input body loginReq true "Credentials"
// @Success 200 {object} envelope
// @Failure 400 {object} envelope
// @Failure 401 {object} envelope
// @Router /api/auth/login [post]
func (s *Server) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Validation failed", bindingErrors(err))
		return
	}
	token, u, err := s.auth.Login(c, req.Email, req.Password)
	if err != nil {
		s.respondError(c, err, "User not found")
		return
	}
	respond(c, http.StatusOK, "Login successful", gin.H{"token": token, "user": u})
}

// @Summary Current user
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} envelope
// @Failure 401 {object} envelope
// @Router /api/auth/me [get]
func (s *Server) me(c *gin.Context) {
	actor, _ := actorFrom(c)
	u, err := s.auth.Me(c, actor)
	if err != nil {
		s.respondError(c, err, "User not found")
		return
	}
	respond(c, http.StatusOK, "", gin.H{"user": u})
}

type profileReq struct {
	Name  *string `json:"name" binding:"omitempty,min=2,max=50"`
	Phone *string `json:"phone" binding:"omitempty,phone"`
}

// @Summary Update profile
// @Tags auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param input body profileReq true "Fields to change"
// @Success 200 {object} envelope
// @Failure 400 {object} envelope
// @Router /api/auth/profile [put]
func (s *Server) updateProfile(c *gin.Context) {
	var req profileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Validation failed", bindingErrors(err))
		return
	}
	actor, _ := actorFrom(c)
	u, err := s.auth.UpdateProfile(c, actor, service.ProfilePatch{Name: req.Name, Phone: req.Phone})
	if err != nil {
		s.respondError(c, err, "User not found")
		return
	}
	respond(c, http.StatusOK, "Profile updated successfully", gin.H{"user": u})
}
