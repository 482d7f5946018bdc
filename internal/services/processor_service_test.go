package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomstream/transaction-processor/internal/store"
	"github.com/ecomstream/transaction-processor/internal/validation"
	"github.com/ecomstream/transaction-processor/internal/views"
	"github.com/ecomstream/transaction-processor/pkg"
	"go.uber.org/zap"
)

func validRecord(id string) views.RawTransaction {
	return views.RawTransaction{
		"transactionId":   id,
		"productId":       "prod-001",
		"productName":     "notebook",
		"productCategory": "electronics",
		"productPrice":    100.0,
		"productQuantity": 2.0,
		"productDiscount": 0.1,
		"productBrand":    "Apple",
		"currency":        "USD",
		"customerId":      "cust-42",
		"transactionDate": "2024-05-01T10:30:00Z",
		"paymentMethod":   "PIX",
	}
}

const recordID = "11111111-1111-1111-1111-111111111111"

func newTestService() (ProcessorService, *store.MemoryStore, *store.MemoryStore) {
	accepted := store.NewMemoryStore()
	rejected := store.NewMemoryStore()
	svc := NewProcessorService(zap.NewNop(), validation.New(), accepted, rejected)
	return svc, accepted, rejected
}

func TestProcessBatch_AcceptedRecordEnriched(t *testing.T) {
	ctx := context.Background()
	svc, accepted, rejected := newTestService()

	summary, err := svc.ProcessBatch(ctx, "trace-1", []views.RawTransaction{validRecord(recordID)})
	require.NoError(t, err)
	assert.Equal(t, BatchSummary{Accepted: 1, Rejected: 0}, summary)

	all, err := accepted.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	rec := all["transaction:"+recordID]
	require.NotNil(t, rec)
	assert.Equal(t, "200.00", rec["totalAmount"])
	assert.Equal(t, "20.00", rec["discountAmount"])
	assert.Equal(t, "180.00", rec["finalAmount"])
	assert.Equal(t, "Apple", rec["productBrand"])
	assert.Equal(t, "100", rec["productPrice"])

	rejectedAll, err := rejected.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, rejectedAll)
}

func TestProcessBatch_RejectedRecordCarriesErrors(t *testing.T) {
	ctx := context.Background()
	svc, accepted, rejected := newTestService()

	raw := validRecord(recordID)
	raw["productBrand"] = "Acme"

	summary, err := svc.ProcessBatch(ctx, "trace-1", []views.RawTransaction{raw})
	require.NoError(t, err)
	assert.Equal(t, BatchSummary{Accepted: 0, Rejected: 1}, summary)

	all, err := rejected.ReadAll(ctx)
	require.NoError(t, err)
	rec := all["transaction:"+recordID]
	require.NotNil(t, rec)
	assert.Contains(t, rec["error 1"], "productBrand")
	assert.Contains(t, rec["error 1"], "Acme")
	assert.NotContains(t, rec, "error 2")
	assert.NotContains(t, rec, "totalAmount")

	acceptedAll, err := accepted.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, acceptedAll)
}

func TestProcessBatch_NumbersEveryViolation(t *testing.T) {
	ctx := context.Background()
	svc, _, rejected := newTestService()

	raw := validRecord(recordID)
	raw["productPrice"] = 10.0
	raw["productQuantity"] = 7.0

	_, err := svc.ProcessBatch(ctx, "trace-1", []views.RawTransaction{raw})
	require.NoError(t, err)

	all, err := rejected.ReadAll(ctx)
	require.NoError(t, err)
	rec := all["transaction:"+recordID]
	require.NotNil(t, rec)

	errorFields := []string{rec["error 1"], rec["error 2"]}
	assert.NotContains(t, rec, "error 3")

	joined := errorFields[0] + " " + errorFields[1]
	assert.Contains(t, joined, "productPrice")
	assert.Contains(t, joined, "productQuantity")
	assert.Contains(t, joined, "got 10")
	assert.Contains(t, joined, "got 7")
}

func TestProcessBatch_FullReplaceSemantics(t *testing.T) {
	ctx := context.Background()
	svc, accepted, rejected := newTestService()

	batchA := []views.RawTransaction{
		validRecord("11111111-1111-1111-1111-111111111111"),
	}
	invalidA := validRecord("22222222-2222-2222-2222-222222222222")
	invalidA["currency"] = "JPY"
	batchA = append(batchA, invalidA)

	_, err := svc.ProcessBatch(ctx, "trace-a", batchA)
	require.NoError(t, err)

	batchB := []views.RawTransaction{
		validRecord("33333333-3333-3333-3333-333333333333"),
	}
	_, err = svc.ProcessBatch(ctx, "trace-b", batchB)
	require.NoError(t, err)

	acceptedAll, err := accepted.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, acceptedAll, 1)
	assert.Contains(t, acceptedAll, "transaction:33333333-3333-3333-3333-333333333333")

	rejectedAll, err := rejected.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, rejectedAll, "batch B had no rejections, so A's must not survive")
}

func TestProcessBatch_EmptyBatchClearsBothPartitions(t *testing.T) {
	ctx := context.Background()
	svc, accepted, rejected := newTestService()

	raw := validRecord(recordID)
	bad := validRecord("22222222-2222-2222-2222-222222222222")
	bad["productBrand"] = "Acme"
	_, err := svc.ProcessBatch(ctx, "trace-1", []views.RawTransaction{raw, bad})
	require.NoError(t, err)

	summary, err := svc.ProcessBatch(ctx, "trace-2", nil)
	require.NoError(t, err)
	assert.Equal(t, BatchSummary{}, summary)

	acceptedAll, _ := accepted.ReadAll(ctx)
	rejectedAll, _ := rejected.ReadAll(ctx)
	assert.Empty(t, acceptedAll)
	assert.Empty(t, rejectedAll)
}

func TestProcessBatch_DuplicateIdentifierLastWriteWins(t *testing.T) {
	ctx := context.Background()
	svc, accepted, _ := newTestService()

	first := validRecord(recordID)
	first["productQuantity"] = 1.0
	second := validRecord(recordID)
	second["productQuantity"] = 3.0

	_, err := svc.ProcessBatch(ctx, "trace-1", []views.RawTransaction{first, second})
	require.NoError(t, err)

	all, err := accepted.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "300.00", all["transaction:"+recordID]["totalAmount"])
}

func TestProcessBatch_AllInvalidLeavesAcceptedEmpty(t *testing.T) {
	ctx := context.Background()
	svc, accepted, rejected := newTestService()

	bad1 := validRecord("11111111-1111-1111-1111-111111111111")
	bad1["productPrice"] = 10.0
	bad2 := validRecord("22222222-2222-2222-2222-222222222222")
	bad2["paymentMethod"] = "voucher"

	summary, err := svc.ProcessBatch(ctx, "trace-1", []views.RawTransaction{bad1, bad2})
	require.NoError(t, err)
	assert.Equal(t, BatchSummary{Accepted: 0, Rejected: 2}, summary)

	acceptedAll, _ := accepted.ReadAll(ctx)
	assert.Empty(t, acceptedAll)
	rejectedAll, _ := rejected.ReadAll(ctx)
	assert.Len(t, rejectedAll, 2)
}

func TestProcessBatch_RecordWithoutIdentifierStillRejected(t *testing.T) {
	ctx := context.Background()
	svc, _, rejected := newTestService()

	raw := validRecord(recordID)
	delete(raw, "transactionId")

	summary, err := svc.ProcessBatch(ctx, "trace-1", []views.RawTransaction{raw})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Rejected)

	all, err := rejected.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// Concurrent uploads must not interleave: after any two batches race, each
// partition has to hold exactly one batch's outcome, never a mix.
func TestProcessBatch_ConcurrentUploadsDoNotMix(t *testing.T) {
	ctx := context.Background()
	svc, accepted, rejected := newTestService()

	batchA := []views.RawTransaction{
		validRecord("aaaaaaa1-0000-0000-0000-000000000000"),
		validRecord("aaaaaaa2-0000-0000-0000-000000000000"),
	}
	badA := validRecord("aaaaaaa3-0000-0000-0000-000000000000")
	badA["currency"] = "JPY"
	batchA = append(batchA, badA)

	batchB := []views.RawTransaction{
		validRecord("bbbbbbb1-0000-0000-0000-000000000000"),
	}
	badB := validRecord("bbbbbbb2-0000-0000-0000-000000000000")
	badB["productBrand"] = "Acme"
	batchB = append(batchB, badB)

	acceptedA := []string{
		"transaction:aaaaaaa1-0000-0000-0000-000000000000",
		"transaction:aaaaaaa2-0000-0000-0000-000000000000",
	}
	acceptedB := []string{"transaction:bbbbbbb1-0000-0000-0000-000000000000"}
	rejectedA := []string{"transaction:aaaaaaa3-0000-0000-0000-000000000000"}
	rejectedB := []string{"transaction:bbbbbbb2-0000-0000-0000-000000000000"}

	for round := 0; round < 25; round++ {
		errs := make(chan error, 2)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.ProcessBatch(ctx, "trace-a", batchA)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := svc.ProcessBatch(ctx, "trace-b", batchB)
			errs <- err
		}()
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		acceptedKeys := partitionKeys(t, accepted)
		rejectedKeys := partitionKeys(t, rejected)
		require.True(t,
			assert.ObjectsAreEqual(acceptedA, acceptedKeys) || assert.ObjectsAreEqual(acceptedB, acceptedKeys),
			"accepted partition mixes batches: %v", acceptedKeys)
		require.True(t,
			assert.ObjectsAreEqual(rejectedA, rejectedKeys) || assert.ObjectsAreEqual(rejectedB, rejectedKeys),
			"rejected partition mixes batches: %v", rejectedKeys)
	}
}

func partitionKeys(t *testing.T, s store.PartitionStore) []string {
	t.Helper()
	all, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// failingStore simulates a storage outage.
type failingStore struct {
	clearErr error
	writeErr error
}

func (f *failingStore) Clear(context.Context) error { return f.clearErr }
func (f *failingStore) Write(context.Context, string, store.Record) error {
	return f.writeErr
}
func (f *failingStore) ReadAll(context.Context) (map[string]store.Record, error) {
	return map[string]store.Record{}, nil
}

func TestProcessBatch_StorageFailureSurfacesTypedError(t *testing.T) {
	ctx := context.Background()
	boom := fmt.Errorf("connection refused")
	svc := NewProcessorService(zap.NewNop(), validation.New(),
		&failingStore{clearErr: boom}, store.NewMemoryStore())

	_, err := svc.ProcessBatch(ctx, "trace-1", []views.RawTransaction{validRecord(recordID)})
	require.Error(t, err)

	var appErr pkg.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, pkg.ErrStorageCode.Code, appErr.Code.Code)
}
