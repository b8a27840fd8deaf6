// Command webhook-test sends a signed payment webhook to a running server.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ManuelReschke/PayDemo/internal/pkg/env"
	"github.com/ManuelReschke/PayDemo/internal/pkg/signature"
)

func main() {
	env.SetupEnvFile()

	url := flag.String("url", "http://localhost:4000/webhooks/razorpay", "webhook endpoint")
	orderID := flag.String("order", "", "provider order id (order_...)")
	amount := flag.Int64("amount", 50000, "amount in minor units")
	event := flag.String("event", "payment.captured", "event type")
	secret := flag.String("secret", env.GetEnv("WEBHOOK_SECRET", ""), "webhook secret, defaults to WEBHOOK_SECRET")
	badSig := flag.Bool("bad-signature", false, "send a signature computed with the wrong secret")
	flag.Parse()

	if *orderID == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *secret == "" {
		log.Fatal("No webhook secret: pass -secret or set WEBHOOK_SECRET")
	}

	body, err := buildPayload(*event, *orderID, *amount)
	if err != nil {
		log.Fatalf("Failed to build payload: %v", err)
	}

	key := []byte(*secret)
	if *badSig {
		key = append(key, 'x')
	}

	req, err := http.NewRequest(http.MethodPost, *url, bytes.NewReader(body))
	if err != nil {
		log.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Razorpay-Signature", signature.Sign(body, key))
	req.Header.Set("X-Razorpay-Event-Id", "evt_"+uuid.NewString())

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	fmt.Printf("%s\n%s\n", resp.Status, respBody)
}

func buildPayload(event, orderID string, amount int64) ([]byte, error) {
	status := "captured"
	switch event {
	case "payment.authorized":
		status = "authorized"
	case "payment.failed":
		status = "failed"
	}
	paymentID := "pay_" + uuid.NewString()[:14]

	return json.Marshal(map[string]any{
		"entity":     "event",
		"account_id": "acc_demo",
		"event":      event,
		"contains":   []string{"payment"},
		"payload": map[string]any{
			"payment": map[string]any{
				"entity": map[string]any{
					"id":       paymentID,
					"entity":   "payment",
					"amount":   amount,
					"currency": "INR",
					"status":   status,
					"order_id": orderID,
				},
			},
		},
		"created_at": time.Now().Unix(),
	})
}
