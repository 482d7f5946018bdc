package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ecomstream/transaction-processor/internal/handlers"
	"github.com/ecomstream/transaction-processor/internal/services"
	"github.com/ecomstream/transaction-processor/internal/store"
	"github.com/ecomstream/transaction-processor/internal/validation"
	"github.com/ecomstream/transaction-processor/pkg"
	middleware "github.com/ecomstream/transaction-processor/pkg/middlewares"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter() *gin.Engine {
	logger := zap.NewNop()
	svc := services.NewProcessorService(logger, validation.New(),
		store.NewMemoryStore(), store.NewMemoryStore())

	r := gin.New()
	r.Use(middleware.TraceID())
	handlers.NewTransactionHandler(logger, svc, nil).RegisterRoutes(r)
	handlers.NewBaseHandler(logger).RegisterRoutes(r)
	return r
}

func validRecord() map[string]any {
	return map[string]any{
		"transactionId":   "11111111-1111-1111-1111-111111111111",
		"productId":       "prod-001",
		"productName":     "notebook",
		"productCategory": "electronics",
		"productPrice":    100.0,
		"productQuantity": 2,
		"productDiscount": 0.1,
		"productBrand":    "Apple",
		"currency":        "USD",
		"customerId":      "cust-42",
		"transactionDate": "2024-05-01T10:30:00Z",
		"paymentMethod":   "PIX",
	}
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUploadTransactions_EmptyBodyRejected(t *testing.T) {
	r := newTestRouter()
	w := doJSON(t, r, http.MethodPost, "/upload_transaction", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, w.Header().Get(pkg.HeaderTraceId))
}

func TestUploadTransactions_MalformedJSONRejected(t *testing.T) {
	r := newTestRouter()
	req := httptest.NewRequest(http.MethodPost, "/upload_transaction", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadTransactions_Success(t *testing.T) {
	r := newTestRouter()

	bad := validRecord()
	bad["productBrand"] = "Acme"
	w := doJSON(t, r, http.MethodPost, "/upload_transaction", []map[string]any{validRecord(), bad})

	require.Equal(t, http.StatusOK, w.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, float64(1), out["accepted"])
	assert.Equal(t, float64(1), out["rejected"])
}

func TestGetProcessedValidData_NotFoundWhenEmpty(t *testing.T) {
	r := newTestRouter()
	w := doJSON(t, r, http.MethodGet, "/get_processed_valid_data", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetProcessedValidData_ReturnsAcceptedPartition(t *testing.T) {
	r := newTestRouter()
	upload := doJSON(t, r, http.MethodPost, "/upload_transaction", []map[string]any{validRecord()})
	require.Equal(t, http.StatusOK, upload.Code)

	w := doJSON(t, r, http.MethodGet, "/get_processed_valid_data", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out map[string]map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	rec, ok := out["transaction:11111111-1111-1111-1111-111111111111"]
	require.True(t, ok)
	assert.Equal(t, "200.00", rec["totalAmount"])
	assert.Equal(t, "180.00", rec["finalAmount"])
}

func TestGetProcessedInvalidData_ReturnsRejectedPartition(t *testing.T) {
	r := newTestRouter()
	bad := validRecord()
	bad["productBrand"] = "Acme"
	upload := doJSON(t, r, http.MethodPost, "/upload_transaction", []map[string]any{bad})
	require.Equal(t, http.StatusOK, upload.Code)

	w := doJSON(t, r, http.MethodGet, "/get_processed_invalid_data", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out map[string]map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	rec := out["transaction:11111111-1111-1111-1111-111111111111"]
	require.NotNil(t, rec)
	assert.Contains(t, rec["error 1"], "productBrand")
}

func TestUploadTransactions_EmptyArrayClearsPartitions(t *testing.T) {
	r := newTestRouter()
	upload := doJSON(t, r, http.MethodPost, "/upload_transaction", []map[string]any{validRecord()})
	require.Equal(t, http.StatusOK, upload.Code)

	clearResp := doJSON(t, r, http.MethodPost, "/upload_transaction", []map[string]any{})
	require.Equal(t, http.StatusOK, clearResp.Code)

	valid := doJSON(t, r, http.MethodGet, "/get_processed_valid_data", nil)
	assert.Equal(t, http.StatusNotFound, valid.Code)
	invalid := doJSON(t, r, http.MethodGet, "/get_processed_invalid_data", nil)
	assert.Equal(t, http.StatusNotFound, invalid.Code)
}

func TestBaseHandler_Liveness(t *testing.T) {
	r := newTestRouter()

	root := doJSON(t, r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, root.Code)

	health := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, health.Code)
}
