// Command webhook_stress fires concurrent, shuffled, signed Stripe deliveries at a
// running server and checks that every order converges to REFUNDED/CANCELLED.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/rl1809/medstore/internal/config"
)

const (
	orderCount         = 10
	deliveriesPerOrder = 12
)

type result struct {
	Order struct {
		Status        string `json:"status"`
		PaymentStatus string `json:"paymentStatus"`
	} `json:"order"`
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Stripe.WebhookSecret == "" {
		log.Fatal("MEDSTORE_STRIPE_WEBHOOK_SECRET must match the server's webhook secret")
	}
	baseURL := "http://localhost" + cfg.HTTP.Addr
	if !strings.HasPrefix(cfg.HTTP.Addr, ":") {
		baseURL = "http://" + cfg.HTTP.Addr
	}
	client := &http.Client{Timeout: 10 * time.Second}

	// Place orders
	type placed struct{ id, number string }
	orders := make([]placed, 0, orderCount)
	for i := 0; i < orderCount; i++ {
		id, number, err := createOrder(client, baseURL, i)
		if err != nil {
			log.Fatalf("failed to create order: %v", err)
		}
		orders = append(orders, placed{id, number})
	}

	// Build shuffled deliveries: every order gets completions, failures and one refund
	var deliveries [][]byte
	for _, o := range orders {
		for j := 0; j < deliveriesPerOrder-1; j++ {
			if j%2 == 0 {
				deliveries = append(deliveries, eventBody("checkout.session.completed",
					fmt.Sprintf(`{"id":"cs_stress","client_reference_id":%q}`, o.id)))
			} else {
				deliveries = append(deliveries, eventBody("payment_intent.payment_failed",
					fmt.Sprintf(`{"id":"pi_stress","metadata":{"orderId":%q}}`, o.id)))
			}
		}
		deliveries = append(deliveries, eventBody("charge.refunded",
			fmt.Sprintf(`{"id":"ch_stress","metadata":{"orderId":%q}}`, o.id)))
	}
	rand.Shuffle(len(deliveries), func(i, j int) { deliveries[i], deliveries[j] = deliveries[j], deliveries[i] })

	var acked, rejected atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for _, body := range deliveries {
		wg.Add(1)
		go func(body []byte) {
			defer wg.Done()
			signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
				Payload:   body,
				Secret:    cfg.Stripe.WebhookSecret,
				Timestamp: time.Now(),
			})

			req, _ := http.NewRequest(http.MethodPost, baseURL+"/api/webhooks/stripe", bytes.NewReader(signed.Payload))
			req.Header.Set("Stripe-Signature", signed.Header)
			resp, err := client.Do(req)
			if err != nil {
				rejected.Add(1)
				return
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				acked.Add(1)
			} else {
				rejected.Add(1)
			}
		}(body)
	}

	wg.Wait()
	elapsed := time.Since(start)

	converged := 0
	for _, o := range orders {
		r, err := track(client, baseURL, o.number)
		if err != nil {
			log.Printf("track %s: %v", o.number, err)
			continue
		}
		if r.Order.PaymentStatus == "REFUNDED" && r.Order.Status == "CANCELLED" {
			converged++
		} else {
			fmt.Printf("order %s ended at %s/%s\n", o.number, r.Order.Status, r.Order.PaymentStatus)
		}
	}

	fmt.Println("========== WEBHOOK STRESS RESULTS ==========")
	fmt.Printf("Orders:           %d\n", orderCount)
	fmt.Printf("Deliveries:       %d\n", len(deliveries))
	fmt.Printf("Acknowledged:     %d\n", acked.Load())
	fmt.Printf("Rejected:         %d\n", rejected.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("=============================================")

	if int(acked.Load()) == len(deliveries) {
		fmt.Println("PASS: every delivery acknowledged")
	} else {
		fmt.Printf("FAIL: %d deliveries not acknowledged\n", rejected.Load())
	}
	if converged == orderCount {
		fmt.Println("PASS: every order converged to CANCELLED/REFUNDED")
	} else {
		fmt.Printf("FAIL: %d of %d orders converged\n", converged, orderCount)
	}
}

func eventBody(eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"data":{"object":%s}}`,
		"evt_"+uuid.NewString(), eventType, object))
}

func createOrder(client *http.Client, baseURL string, n int) (string, string, error) {
	body := fmt.Sprintf(`{
		"email": "stress-%d@example.com",
		"items": [{"sku":"ST-%d","name":"Stethoscope","price":"89.95","quantity":1}],
		"shippingAddress": {"line1":"1 Test St","city":"Testville","postalCode":"00000","country":"US"}
	}`, n, n)

	resp, err := client.Post(baseURL+"/api/orders", "application/json", strings.NewReader(body))
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", "", fmt.Errorf("create order: status %d", resp.StatusCode)
	}

	var out struct {
		Order struct {
			ID          string `json:"id"`
			OrderNumber string `json:"orderNumber"`
		} `json:"order"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", err
	}
	return out.Order.ID, out.Order.OrderNumber, nil
}

func track(client *http.Client, baseURL, number string) (*result, error) {
	resp, err := client.Get(baseURL + "/api/orders/track/" + number)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var r result
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}
