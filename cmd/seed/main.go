// Synthetic transaction batch generator.
// Produces randomized batches mixing records that satisfy the business rules
// with records that deliberately break them (out-of-range prices and
// discounts, zero quantities, unknown brands/currencies/payment methods), and
// POSTs each batch to the upload endpoint with jittered retry.
//
// Example:
//
//	go run ./cmd/seed -apiUrl=http://localhost:8080 -batches=5 -batchSize=100
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecomstream/transaction-processor/pkg"
	"github.com/ecomstream/transaction-processor/pkg/utils"
)

var (
	apiURL       = flag.String("apiUrl", "http://localhost:8080", "Transaction processor base URL")
	batches      = flag.Int("batches", 1, "Number of batches to upload")
	batchSize    = flag.Int("batchSize", 50, "Records per batch")
	maxAttempts  = flag.Int("maxAttempts", 3, "Upload attempts per batch before giving up")
	timeoutMs    = flag.Int("timeoutMs", 4000, "HTTP client timeout (ms)")
	pauseBetween = flag.Duration("pause", 0, "Pause between batches")
)

var (
	productIDs = []string{"prod-001", "prod-002", "prod-003", "prod-004", "prod-005", "prod-006", "prod-007"}
	products   = []string{"notebook", "phone", "tablet", "smartwatch", "headphones", "speaker"}
	categories = []string{"electronics", "clothing", "food", "home and decor", "beauty", "sports"}
	// Includes members outside the closed sets so some records get rejected.
	brands     = []string{"Apple", "Samsung", "Xiaomi", "Microsoft", "Sony", "LG", "Dell", "Lenovo", "Acme"}
	currencies = []string{"BRL", "USD", "EUR", "JPY"}
	payments   = []string{"credit card", "debit card", "PIX", "cash", "voucher"}
)

func randomTransaction() map[string]any {
	return map[string]any{
		"transactionId":   uuid.New().String(),
		"productId":       productIDs[rand.Intn(len(productIDs))],
		"productName":     products[rand.Intn(len(products))],
		"productCategory": categories[rand.Intn(len(categories))],
		"productPrice":    roundTo2(50 + rand.Float64()*4950),
		"productQuantity": rand.Intn(6),
		"productDiscount": roundTo2(rand.Float64() * 0.5),
		"productBrand":    brands[rand.Intn(len(brands))],
		"currency":        currencies[rand.Intn(len(currencies))],
		"customerId":      fmt.Sprintf("cust-%04d", rand.Intn(10000)),
		"transactionDate": time.Now().Format("2006-01-02 15:04:05"),
		"paymentMethod":   payments[rand.Intn(len(payments))],
	}
}

func roundTo2(f float64) float64 {
	return float64(int(f*100)) / 100
}

func main() {
	flag.Parse()
	pkg.InitLogger()
	logger := pkg.Logger
	defer func() { _ = logger.Sync() }()

	client := &http.Client{Timeout: time.Duration(*timeoutMs) * time.Millisecond}
	uploadURL := *apiURL + "/upload_transaction"

	for b := 1; b <= *batches; b++ {
		batch := make([]map[string]any, 0, *batchSize)
		for i := 0; i < *batchSize; i++ {
			batch = append(batch, randomTransaction())
		}

		if err := uploadBatch(client, logger, uploadURL, batch); err != nil {
			logger.Error("batch upload failed", zap.Int("batch", b), zap.Error(err))
			continue
		}
		logger.Info("batch uploaded", zap.Int("batch", b), zap.Int("size", len(batch)))

		if *pauseBetween > 0 && b < *batches {
			time.Sleep(*pauseBetween)
		}
	}
}

func uploadBatch(client *http.Client, logger *zap.Logger, url string, batch []map[string]any) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= *maxAttempts; attempt++ {
		resp, err := client.Post(url, "application/json", bytes.NewReader(body))
		if err == nil {
			status := resp.StatusCode
			_ = resp.Body.Close()
			if status == http.StatusOK {
				return nil
			}
			lastErr = fmt.Errorf("unexpected status %d", status)
		} else {
			lastErr = err
		}

		if attempt < *maxAttempts {
			delay := utils.CalculateExponentialBackoffWithJitter(attempt, time.Second, 30*time.Second)
			logger.Warn("upload attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(lastErr),
			)
			time.Sleep(delay)
		}
	}
	return lastErr
}
