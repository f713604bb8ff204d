package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"
)

// Exercises a running API end to end: deposit, fee-split withdrawal,
// lock/release, then the invariant endpoint must still hold.
func main() {
	base := os.Getenv("NIVESH_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	client := &http.Client{Timeout: 5 * time.Second}

	user := fmt.Sprintf("smoke-%d", rand.New(rand.NewSource(time.Now().UnixNano())).Int31())
	token := obtainToken(client, base)

	wallet := post(client, base, token, "/v1/wallets/"+user+"/deposit", map[string]any{
		"amount":    100_000,
		"reference": user + "-dep",
	})
	if wallet["available"].(float64) != 100_000 {
		log.Fatalf("deposit: available=%v", wallet["available"])
	}

	wallet = post(client, base, token, "/v1/wallets/"+user+"/withdraw", map[string]any{
		"amount":    30_000,
		"tx_type":   "INVESTMENT",
		"fee":       5_000,
		"reference": user + "-inv",
	})
	if wallet["available"].(float64) != 70_000 {
		log.Fatalf("withdraw: available=%v", wallet["available"])
	}

	wallet = post(client, base, token, "/v1/wallets/"+user+"/lock", map[string]any{"amount": 20_000})
	if wallet["locked"].(float64) != 20_000 {
		log.Fatalf("lock: locked=%v", wallet["locked"])
	}
	wallet = post(client, base, token, "/v1/wallets/"+user+"/release", map[string]any{"amount": 20_000})
	if wallet["locked"].(float64) != 0 {
		log.Fatalf("release: locked=%v", wallet["locked"])
	}

	report := get(client, base, token, "/v1/invariant")
	if holds, _ := report["holds"].(bool); !holds {
		log.Fatalf("invariant violated: %v", report)
	}

	fmt.Printf("✅ wallet smoke test passed: user=%s\n", user)
}

func obtainToken(client *http.Client, base string) string {
	body, _ := json.Marshal(map[string]any{
		"user":  "smoke",
		"roles": []string{"operator"},
	})
	resp, err := client.Post(base+"/v1/auth/token", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("token request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		// Auth disabled on the target; proceed without a token.
		return ""
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatalf("decode token: %v", err)
	}
	return out.Token
}

func post(client *http.Client, base, token, path string, payload map[string]any) map[string]any {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		log.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return do(client, req, path)
}

func get(client *http.Client, base, token, path string) map[string]any {
	req, err := http.NewRequest(http.MethodGet, base+path, nil)
	if err != nil {
		log.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return do(client, req, path)
}

func do(client *http.Client, req *http.Request, path string) map[string]any {
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Fatalf("%s: status %d", path, resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatalf("%s: decode: %v", path, err)
	}
	return out
}
