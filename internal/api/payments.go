package api

import (
	"errors"
	"net/http"

	"github.com/Fi44er/community_payments/internal/paystack"
	"github.com/Fi44er/community_payments/internal/service"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to read request body"})
		return
	}

	err = s.payments.HandleWebhook(c.Request.Context(), body, c.GetHeader(paystack.SignatureHeader))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "Webhook received"})
	case errors.Is(err, service.ErrSignatureInvalid):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook payload", "details": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed", "details": err.Error()})
	}
}

func (s *Server) handleInitialize(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	res, err := s.payments.InitializePayment(c.Request.Context(), identityFrom(c), req.Amount)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authorizationUrl": res.AuthorizationURL,
		"accessCode":       res.AccessCode,
		"reference":        res.Reference,
	})
}

func (s *Server) handleVerify(c *gin.Context) {
	var req referenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Reference is required"})
		return
	}

	res, err := s.payments.VerifyPayment(c.Request.Context(), identityFrom(c), req.Reference)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if res.AlreadyProcessed {
		c.JSON(http.StatusOK, gin.H{
			"message": res.Message,
			"amount":  res.Amount.InexactFloat64(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       res.Message,
		"amount":        res.Amount.InexactFloat64(),
		"transactionId": res.TransactionID,
	})
}

func (s *Server) handleListFailures(c *gin.Context) {
	failures, err := s.payments.ListPendingFailures(c.Request.Context(), identityFrom(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFailureResponses(failures))
}

func (s *Server) handleRetry(c *gin.Context) {
	var req retryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failureId is required"})
		return
	}

	res, err := s.payments.RetryFailure(c.Request.Context(), identityFrom(c), req.FailureID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": res.Message,
		"amount":  res.Amount.InexactFloat64(),
	})
}

func (s *Server) handleEnrollRecurring(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	res, err := s.payments.EnrollRecurring(c.Request.Context(), identityFrom(c), req.Amount)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":          "Recurring payment set up",
		"authorizationUrl": res.AuthorizationURL,
		"reference":        res.Reference,
		"planCode":         res.PlanCode,
		"amount":           res.Amount.InexactFloat64(),
	})
}

func (s *Server) handleUpdateRecurring(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	amount, err := s.payments.UpdateRecurringAmount(c.Request.Context(), identityFrom(c), req.Amount)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Recurring payment updated",
		"amount":  amount.InexactFloat64(),
	})
}

func (s *Server) handleCancelRecurring(c *gin.Context) {
	if err := s.payments.CancelRecurring(c.Request.Context(), identityFrom(c)); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Recurring payment cancelled"})
}

func (s *Server) handleDedicatedAccount(c *gin.Context) {
	res, err := s.payments.RequestDedicatedAccount(c.Request.Context(), identityFrom(c))
	if err != nil {
		s.respondError(c, err)
		return
	}

	if res.Pending {
		c.JSON(http.StatusAccepted, gin.H{
			"message": "Dedicated account requested, you will be notified once it is assigned",
			"pending": true,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pending": false,
		"account": accountResponse{
			AccountNumber: res.Account.AccountNumber,
			AccountName:   res.Account.AccountName,
			BankName:      res.Account.BankName,
			AssignedAt:    res.Account.AssignedAt,
		},
	})
}
