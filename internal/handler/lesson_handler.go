package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lesson-package-api/internal/dto"
	"github.com/noah-isme/lesson-package-api/internal/models"
	"github.com/noah-isme/lesson-package-api/pkg/response"
)

type lessonService interface {
	Create(ctx context.Context, req dto.LessonRequest) (*models.Lesson, error)
	Update(ctx context.Context, id string, req dto.LessonRequest) (*models.Lesson, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.Lesson, error)
	ListByPackage(ctx context.Context, packageID string) ([]models.Lesson, error)
	ResolveOverflow(ctx context.Context, req dto.ResolveOverflowRequest) (*models.OverflowResult, error)
}

// LessonHandler exposes lesson endpoints.
type LessonHandler struct {
	service lessonService
}

// NewLessonHandler builds a new handler.
func NewLessonHandler(service lessonService) *LessonHandler {
	return &LessonHandler{service: service}
}

// Create godoc
// @Summary Schedule a lesson
// @Description A package lesson longer than the hours left in its package fails with PACKAGE_OVERFLOW and writes nothing; resolve it through /lessons/handle-overflow.
// @Tags Lessons
// @Accept json
// @Produce json
// @Param payload body dto.LessonRequest true "Lesson payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /lessons [post]
func (h *LessonHandler) Create(c *gin.Context) {
	var req dto.LessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err, "invalid lesson payload"))
		return
	}
	lesson, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson)
}

// ResolveOverflow godoc
// @Summary Book a lesson that exceeds its package
// @Description use_single books the excess as an unpaid single lesson; use_new_package opens a successor package for it.
// @Tags Lessons
// @Accept json
// @Produce json
// @Param payload body dto.ResolveOverflowRequest true "Resolution payload"
// @Success 201 {object} response.Envelope
// @Router /lessons/handle-overflow [post]
func (h *LessonHandler) ResolveOverflow(c *gin.Context) {
	var req dto.ResolveOverflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err, "invalid overflow payload"))
		return
	}
	result, err := h.service.ResolveOverflow(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Get godoc
// @Summary Get a lesson
// @Tags Lessons
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Router /lessons/{id} [get]
func (h *LessonHandler) Get(c *gin.Context) {
	lesson, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson)
}

// ListByPackage godoc
// @Summary List the lessons of a package
// @Tags Lessons
// @Produce json
// @Param id path string true "Package ID"
// @Success 200 {object} response.Envelope
// @Router /packages/{id}/lessons [get]
func (h *LessonHandler) ListByPackage(c *gin.Context) {
	lessons, err := h.service.ListByPackage(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lessons)
}

// Update godoc
// @Summary Update a lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body dto.LessonRequest true "Lesson payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /lessons/{id} [put]
func (h *LessonHandler) Update(c *gin.Context) {
	var req dto.LessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err, "invalid lesson payload"))
		return
	}
	lesson, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson)
}

// Delete godoc
// @Summary Delete a lesson
// @Tags Lessons
// @Param id path string true "Lesson ID"
// @Success 204
// @Router /lessons/{id} [delete]
func (h *LessonHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
