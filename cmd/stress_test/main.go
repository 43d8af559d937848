package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

// Fires concurrent single-unit checkouts at a running server and checks
// that exactly the available stock was sold.
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	initialStock := flag.Int("stock", 20, "stock to put on the test product")
	totalRequests := flag.Int("requests", 50, "concurrent checkouts to send")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}
	ctx := context.Background()

	// Create a fresh product for this run
	sku := "STRESS-" + uuid.NewString()[:8]
	var product domain.Product
	status, err := postJSON(ctx, client, *baseURL+"/api/products", map[string]any{
		"name":           "Stress test item " + sku,
		"sku":            sku,
		"price":          "100.00",
		"stock_quantity": *initialStock,
	}, "", &product)
	if err != nil || status != http.StatusCreated {
		log.Fatalf("failed to create product: status=%d err=%v", status, err)
	}

	price := decimal.RequireFromString("100.00")
	tax := domain.TaxFor(price)
	cart := map[string]any{
		"customerName": "stress",
		"items": []map[string]any{
			{"id": product.ID, "name": product.Name, "price": price, "quantity": 1, "lineTotal": price},
		},
		"subtotal":   price,
		"tax":        tax,
		"grandTotal": price.Add(tax),
	}

	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var errorCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			status, err := postJSON(ctx, client, *baseURL+"/api/checkout", cart, uuid.NewString(), nil)
			switch {
			case err != nil:
				errorCount.Add(1)
			case status == http.StatusCreated:
				successCount.Add(1)
			case status == http.StatusConflict:
				soldOutCount.Add(1)
			default:
				errorCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := int(successCount.Load())
	soldOut := int(soldOutCount.Load())

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", *initialStock)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold out:         %d\n", soldOut)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	expected := min(*initialStock, *totalRequests)
	if success == expected && soldOut == *totalRequests-expected {
		fmt.Printf("PASS: Exactly %d checkouts succeeded, %d sold out\n", expected, soldOut)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d sold out, got %d/%d\n",
			expected, *totalRequests-expected, success, soldOut)
	}

	// Verify final stock
	var final domain.Product
	if err := getJSON(ctx, client, fmt.Sprintf("%s/api/products/%d", *baseURL, product.ID), &final); err != nil {
		log.Fatalf("failed to read product: %v", err)
	}
	fmt.Printf("Final Stock: %d\n", final.StockQuantity)

	if final.StockQuantity == *initialStock-expected {
		fmt.Printf("PASS: Stock is %d\n", final.StockQuantity)
	} else {
		fmt.Printf("FAIL: Expected stock %d, got %d\n", *initialStock-expected, final.StockQuantity)
	}
}

func postJSON(ctx context.Context, client *http.Client, url string, body any, idempotencyKey string, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
