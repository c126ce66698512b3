package handlers

import (
	"net/http"

	"salome-be/internal/apperrors"
	"salome-be/internal/middleware"
	"salome-be/internal/models"
	"salome-be/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	logger         *zap.Logger
	reconciliation *services.ReconciliationService
}

func NewPaymentHandler(logger *zap.Logger, reconciliation *services.ReconciliationService) *PaymentHandler {
	return &PaymentHandler{logger: logger, reconciliation: reconciliation}
}

// CreateGroupPaymentLink issues (or returns the existing) payment link for
// the caller's pending share in a group.
func (h *PaymentHandler) CreateGroupPaymentLink(c *gin.Context) {
	var req models.GroupPaymentLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	groupID, err := uuid.Parse(req.GroupID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group id"})
		return
	}

	link, err := h.reconciliation.CreateGroupPaymentLink(c.Request.Context(), groupID, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

// ListGroupPayments returns the payment history for one group.
func (h *PaymentHandler) ListGroupPayments(c *gin.Context) {
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group id"})
		return
	}

	payments, err := h.reconciliation.ListGroupPayments(c.Request.Context(), groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments, "total": len(payments)})
}

// ListMyPayments returns the caller's payment history across groups.
func (h *PaymentHandler) ListMyPayments(c *gin.Context) {
	payments, err := h.reconciliation.ListUserPayments(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments, "total": len(payments)})
}

// Notification is the gateway webhook. It always answers 200 once the
// payload reached reconciliation, including on amount mismatch, so the
// gateway stops retrying a delivery we have already recorded.
func (h *PaymentHandler) Notification(c *gin.Context) {
	var notif models.PaymentNotification
	if err := c.ShouldBindJSON(&notif); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.reconciliation.HandleNotification(c.Request.Context(), &notif)
	if err != nil {
		switch apperrors.KindOf(err) {
		case apperrors.KindMismatch:
			c.JSON(http.StatusOK, gin.H{"status": "mismatch", "message": err.Error()})
		case apperrors.KindNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			h.logger.Error("webhook reconciliation failed",
				zap.String("order_id", notif.OrderID),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Reconciliation failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Sync polls the gateway for an order's current status, for when a webhook
// went missing.
func (h *PaymentHandler) Sync(c *gin.Context) {
	orderID := c.Param("orderId")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order id required"})
		return
	}

	if err := h.reconciliation.SyncPaymentStatus(c.Request.Context(), orderID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "synced"})
}
