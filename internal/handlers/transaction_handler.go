package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ecomstream/transaction-processor/internal/services"
	"github.com/ecomstream/transaction-processor/internal/store"
	"github.com/ecomstream/transaction-processor/internal/views"
	"github.com/ecomstream/transaction-processor/pkg"
	"github.com/ecomstream/transaction-processor/pkg/utils"
)

type TransactionHandler struct {
	logger  *zap.Logger
	service services.ProcessorService
	limiter *pkg.DistributedLimiter
}

func NewTransactionHandler(logger *zap.Logger, svc services.ProcessorService, limiter *pkg.DistributedLimiter) *TransactionHandler {
	return &TransactionHandler{logger: logger, service: svc, limiter: limiter}
}

// RegisterRoutes registers the transaction routes on the provided Gin engine.
func (h *TransactionHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/upload_transaction", h.UploadTransactions)
	r.GET("/get_processed_valid_data", h.GetProcessedValidData)
	r.GET("/get_processed_invalid_data", h.GetProcessedInvalidData)
}

// UploadTransactions ingests a batch of raw transaction records and replaces
// both partitions with its outcome. An empty array is a valid batch that
// clears both partitions; an absent or non-JSON body is a client error.
// Upload failures, storage included, are reported as 400 with the reason.
func (h *TransactionHandler) UploadTransactions(c *gin.Context) {
	traceID, err := utils.GetTraceID(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, pkg.ErrorResponse{
			Code:    pkg.ErrServerCode.Code,
			Message: err.Error(),
		})
		return
	}

	if h.limiter != nil && !h.limiter.Allow(c.Request.Context()) {
		c.JSON(pkg.ErrRateLimitedCode.Status, pkg.ErrorResponse{
			Code:    pkg.ErrRateLimitedCode.Code,
			Message: pkg.ErrRateLimitedCode.Message,
		})
		return
	}

	var batch []views.RawTransaction
	if err = c.ShouldBindJSON(&batch); err != nil {
		h.logger.Warn("invalid upload body", zap.String(pkg.TraceId, traceID), zap.Error(err))
		c.JSON(http.StatusBadRequest, pkg.ErrorResponse{
			Code:    pkg.ErrInvalidInputCode.Code,
			Message: pkg.ErrEmptyBody.Error(),
			Details: err.Error(),
		})
		return
	}

	summary, err := h.service.ProcessBatch(c.Request.Context(), traceID, batch)
	if err != nil {
		resp := pkg.ToErrorResponse(h.logger, traceID, err)
		// The upload endpoint reports every failure as a request error.
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "data received successfully",
		"accepted": summary.Accepted,
		"rejected": summary.Rejected,
	})
}

// GetProcessedValidData returns the full accepted partition keyed by
// transaction slot; 404 when the partition is empty.
func (h *TransactionHandler) GetProcessedValidData(c *gin.Context) {
	h.readPartition(c, pkg.PartitionAccepted, h.service.AcceptedRecords)
}

// GetProcessedInvalidData returns the full rejected partition, each record
// carrying its numbered error fields; 404 when the partition is empty.
func (h *TransactionHandler) GetProcessedInvalidData(c *gin.Context) {
	h.readPartition(c, pkg.PartitionRejected, h.service.RejectedRecords)
}

func (h *TransactionHandler) readPartition(c *gin.Context, partition pkg.Partition, read func(context.Context) (map[string]store.Record, error)) {
	traceID, err := utils.GetTraceID(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, pkg.ErrorResponse{
			Code:    pkg.ErrServerCode.Code,
			Message: err.Error(),
		})
		return
	}

	records, err := read(c.Request.Context())
	if err != nil {
		err = pkg.HandleStorageError(traceID, h.logger, partition, err)
		resp := pkg.ToErrorResponse(h.logger, traceID, err)
		c.JSON(resp.Status, resp)
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"info": pkg.ErrRecordNotFoundCode.Message})
		return
	}
	c.JSON(http.StatusOK, records)
}
