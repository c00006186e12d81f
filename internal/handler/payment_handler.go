package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lesson-package-api/internal/dto"
	"github.com/noah-isme/lesson-package-api/internal/models"
	"github.com/noah-isme/lesson-package-api/pkg/response"
)

type paymentService interface {
	Add(ctx context.Context, packageID string, req dto.CreatePaymentRequest) (*models.PackagePayment, error)
	List(ctx context.Context, packageID string) (*models.PackagePayments, error)
	Delete(ctx context.Context, packageID, paymentID string) error
}

// PaymentHandler exposes package installment endpoints.
type PaymentHandler struct {
	service paymentService
}

// NewPaymentHandler builds a new handler.
func NewPaymentHandler(service paymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// Add godoc
// @Summary Register a package installment
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Package ID"
// @Param payload body dto.CreatePaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /packages/{id}/payments [post]
func (h *PaymentHandler) Add(c *gin.Context) {
	var req dto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err, "invalid payment payload"))
		return
	}
	payment, err := h.service.Add(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// List godoc
// @Summary List package installments with a summary
// @Tags Payments
// @Produce json
// @Param id path string true "Package ID"
// @Success 200 {object} response.Envelope
// @Router /packages/{id}/payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	payments, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments)
}

// Delete godoc
// @Summary Delete a package installment
// @Tags Payments
// @Param id path string true "Package ID"
// @Param paymentId path string true "Payment ID"
// @Success 204
// @Router /packages/{id}/payments/{paymentId} [delete]
func (h *PaymentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), c.Param("paymentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
