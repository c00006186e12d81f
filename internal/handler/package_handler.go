package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lesson-package-api/internal/dto"
	"github.com/noah-isme/lesson-package-api/internal/middleware"
	"github.com/noah-isme/lesson-package-api/internal/models"
	"github.com/noah-isme/lesson-package-api/internal/service"
	"github.com/noah-isme/lesson-package-api/pkg/response"
)

type packageService interface {
	Create(ctx context.Context, req dto.CreatePackageRequest, allowMultiple bool) (*models.PackageDetail, error)
	Get(ctx context.Context, id string) (*models.PackageDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.PackageDetail, bool, error)
	Update(ctx context.Context, id string, req dto.UpdatePackageRequest, allowMultiple bool) (*models.PackageDetail, error)
	Delete(ctx context.Context, id string) (*models.DeletedPackage, error)
	Extend(ctx context.Context, id string) (*models.PackageDetail, error)
	CancelExtension(ctx context.Context, id string) (*models.PackageDetail, error)
	Recompute(ctx context.Context, id string) (*models.PackageDetail, error)
}

type statementRenderer interface {
	Render(ctx context.Context, packageID string, format dto.StatementFormat) (*service.Statement, error)
}

// PackageHandler exposes lesson package endpoints.
type PackageHandler struct {
	service    packageService
	statements statementRenderer
}

// NewPackageHandler builds a new handler.
func NewPackageHandler(service packageService, statements statementRenderer) *PackageHandler {
	return &PackageHandler{service: service, statements: statements}
}

// Create godoc
// @Summary Create a lesson package
// @Description Creates a package for one to three students. Fails with OVERLAPPING_PACKAGE when a student already holds a package over the same weeks, unless allow_multiple is set.
// @Tags Packages
// @Accept json
// @Produce json
// @Param allow_multiple query bool false "Skip the overlapping package check"
// @Param payload body dto.CreatePackageRequest true "Package payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /packages [post]
func (h *PackageHandler) Create(c *gin.Context) {
	allowMultiple, err := boolQuery(c, "allow_multiple")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CreatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err, "invalid package payload"))
		return
	}
	detail, err := h.service.Create(c.Request.Context(), req, allowMultiple)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Get godoc
// @Summary Get a package
// @Tags Packages
// @Produce json
// @Param id path string true "Package ID"
// @Success 200 {object} response.Envelope
// @Router /packages/{id} [get]
func (h *PackageHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail)
}

// ListByStudent godoc
// @Summary List the packages of a student
// @Tags Packages
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /packages/student/{studentId} [get]
func (h *PackageHandler) ListByStudent(c *gin.Context) {
	items, cached, err := h.service.ListByStudent(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, items, middleware.ExtractMeta(c))
}

// Update godoc
// @Summary Update a package
// @Tags Packages
// @Accept json
// @Produce json
// @Param id path string true "Package ID"
// @Param allow_multiple query bool false "Skip the overlapping package check"
// @Param payload body dto.UpdatePackageRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /packages/{id} [put]
func (h *PackageHandler) Update(c *gin.Context) {
	allowMultiple, err := boolQuery(c, "allow_multiple")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err, "invalid package payload"))
		return
	}
	detail, err := h.service.Update(c.Request.Context(), c.Param("id"), req, allowMultiple)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail)
}

// Delete godoc
// @Summary Delete a package with its lessons
// @Tags Packages
// @Produce json
// @Param id path string true "Package ID"
// @Success 200 {object} response.Envelope
// @Router /packages/{id} [delete]
func (h *PackageHandler) Delete(c *gin.Context) {
	deleted, err := h.service.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, deleted)
}

// Extend godoc
// @Summary Extend a package by one week
// @Tags Packages
// @Produce json
// @Param id path string true "Package ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /packages/{id}/extend [put]
func (h *PackageHandler) Extend(c *gin.Context) {
	detail, err := h.service.Extend(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail)
}

// CancelExtension godoc
// @Summary Cancel the last weekly extension of a package
// @Tags Packages
// @Produce json
// @Param id path string true "Package ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /packages/{id}/cancel-extension [put]
func (h *PackageHandler) CancelExtension(c *gin.Context) {
	detail, err := h.service.CancelExtension(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail)
}

// Recompute godoc
// @Summary Recompute the hour ledger of a package
// @Tags Packages
// @Produce json
// @Param id path string true "Package ID"
// @Success 200 {object} response.Envelope
// @Router /packages/{id}/recompute [post]
func (h *PackageHandler) Recompute(c *gin.Context) {
	detail, err := h.service.Recompute(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail)
}

// Statement godoc
// @Summary Download a package statement
// @Tags Packages
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Package ID"
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Success 200 {file} file
// @Router /packages/{id}/statement [get]
func (h *PackageHandler) Statement(c *gin.Context) {
	format := dto.StatementFormat(c.DefaultQuery("format", string(dto.StatementCSV)))
	statement, err := h.statements.Render(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, statement.Filename, statement.ContentType, statement.Payload)
}
