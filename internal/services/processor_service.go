package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/ecomstream/transaction-processor/internal/finance"
	"github.com/ecomstream/transaction-processor/internal/store"
	"github.com/ecomstream/transaction-processor/internal/validation"
	"github.com/ecomstream/transaction-processor/internal/views"
	"github.com/ecomstream/transaction-processor/pkg"
)

var (
	batchesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "transaction_processor",
		Name:      "batches_processed_total",
		Help:      "Total number of successfully applied transaction batches",
	})
	recordsPartitioned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transaction_processor",
		Name:      "records_partitioned_total",
		Help:      "Records routed to a partition, by outcome",
	}, []string{"partition"})
)

// BatchSummary reports how one batch was partitioned.
type BatchSummary struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

type ProcessorService interface {
	// ProcessBatch validates every record, enriches the passing ones with the
	// derived amounts, and replaces both partitions with the batch's outcome.
	ProcessBatch(ctx context.Context, traceID string, batch []views.RawTransaction) (BatchSummary, error)
	AcceptedRecords(ctx context.Context) (map[string]store.Record, error)
	RejectedRecords(ctx context.Context) (map[string]store.Record, error)
}

type ProcessorServiceImpl struct {
	logger    *zap.Logger
	validator *validation.Validator
	accepted  store.PartitionStore
	rejected  store.PartitionStore

	// mu serializes the clear-then-write flush so concurrent uploads can
	// never leave a partition holding a mix of two batches.
	mu sync.Mutex
}

func NewProcessorService(logger *zap.Logger, v *validation.Validator, accepted, rejected store.PartitionStore) ProcessorService {
	return &ProcessorServiceImpl{
		logger:    logger,
		validator: v,
		accepted:  accepted,
		rejected:  rejected,
	}
}

// entry keeps batch order so a duplicate identifier's final stored value is
// the last occurrence in the batch.
type entry struct {
	key string
	rec store.Record
}

func (s *ProcessorServiceImpl) ProcessBatch(ctx context.Context, traceID string, batch []views.RawTransaction) (BatchSummary, error) {
	var acceptedBuf, rejectedBuf []entry

	for _, raw := range batch {
		txn, violations := s.validator.Validate(raw)
		if len(violations) == 0 {
			rec, err := s.enrich(raw, txn)
			if err != nil {
				// Not expected on validated input; the record falls back to
				// the rejected partition instead of aborting the batch.
				s.logger.Error("amount calculation failed",
					zap.String(pkg.TraceId, traceID),
					zap.String("transactionId", txn.TransactionID),
					zap.Error(err),
				)
				violations = []views.Violation{{
					Field:   "record",
					Kind:    validation.KindCalculationError,
					Message: "Amount calculation failed",
					Input:   txn.TransactionID,
				}}
			} else {
				s.logger.Info("transaction accepted",
					zap.String(pkg.TraceId, traceID),
					zap.String("transactionId", txn.TransactionID),
				)
				acceptedBuf = append(acceptedBuf, entry{key: recordKey(raw), rec: rec})
				continue
			}
		}

		s.logger.Warn("transaction rejected",
			zap.String(pkg.TraceId, traceID),
			zap.String("transactionId", txn.TransactionID),
			zap.Int("violations", len(violations)),
		)
		rejectedBuf = append(rejectedBuf, entry{key: recordKey(raw), rec: rejectRecord(raw, violations)})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flush(ctx, s.accepted, acceptedBuf); err != nil {
		return BatchSummary{}, pkg.HandleStorageError(traceID, s.logger, pkg.PartitionAccepted, err)
	}
	if err := s.flush(ctx, s.rejected, rejectedBuf); err != nil {
		return BatchSummary{}, pkg.HandleStorageError(traceID, s.logger, pkg.PartitionRejected, err)
	}

	batchesProcessed.Inc()
	recordsPartitioned.WithLabelValues(string(pkg.PartitionAccepted)).Add(float64(len(acceptedBuf)))
	recordsPartitioned.WithLabelValues(string(pkg.PartitionRejected)).Add(float64(len(rejectedBuf)))

	summary := BatchSummary{Accepted: len(acceptedBuf), Rejected: len(rejectedBuf)}
	s.logger.Info("transaction batch applied",
		zap.String(pkg.TraceId, traceID),
		zap.Int("accepted", summary.Accepted),
		zap.Int("rejected", summary.Rejected),
	)
	return summary, nil
}

func (s *ProcessorServiceImpl) AcceptedRecords(ctx context.Context) (map[string]store.Record, error) {
	return s.accepted.ReadAll(ctx)
}

func (s *ProcessorServiceImpl) RejectedRecords(ctx context.Context) (map[string]store.Record, error) {
	return s.rejected.ReadAll(ctx)
}

// flush replaces a partition's contents: clear first, then write the buffer
// in batch order. Write-then-clear would retain stale keys from prior batches.
func (s *ProcessorServiceImpl) flush(ctx context.Context, p store.PartitionStore, buf []entry) error {
	if err := p.Clear(ctx); err != nil {
		return fmt.Errorf("clear partition: %w", err)
	}
	for _, e := range buf {
		if err := p.Write(ctx, e.key, e.rec); err != nil {
			return fmt.Errorf("write %s: %w", e.key, err)
		}
	}
	return nil
}

// enrich builds the stored form of an accepted record: the original fields
// plus the three derived amounts, fixed to 2 decimal places.
func (s *ProcessorServiceImpl) enrich(raw views.RawTransaction, txn views.Transaction) (rec store.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("derive amounts: %v", r)
		}
	}()

	total := finance.TotalAmount(txn.ProductQuantity, txn.ProductPrice)
	discount := finance.DiscountAmount(total, txn.ProductDiscount)
	final := finance.FinalAmount(total, discount)

	rec = views.FlattenRecord(raw)
	rec["totalAmount"] = total.StringFixed(2)
	rec["discountAmount"] = discount.StringFixed(2)
	rec["finalAmount"] = final.StringFixed(2)
	return rec, nil
}

// rejectRecord attaches one sequentially numbered error field per violation
// to the original record.
func rejectRecord(raw views.RawTransaction, violations []views.Violation) store.Record {
	rec := views.FlattenRecord(raw)
	for i, v := range violations {
		rec[fmt.Sprintf("error %d", i+1)] = v.String()
	}
	return rec
}

// recordKey forms the partition key from the raw identifier. A record whose
// identifier is absent or not a string still lands in the rejected partition,
// under a generated slot so it is not silently dropped.
func recordKey(raw views.RawTransaction) string {
	if id, ok := raw["transactionId"].(string); ok && id != "" {
		return pkg.KeyPrefix + id
	}
	return pkg.KeyPrefix + uuid.New().String()
}
