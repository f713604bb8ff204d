package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"niveshpay.org/internal/auth"
	"niveshpay.org/internal/ledger"
	"niveshpay.org/internal/obs"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(original) })
	return &buf
}

func TestLogEvent(t *testing.T) {
	buf := captureLog(t)

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = auth.ContextWithUser(ctx, "user-42", []string{"admin"})

	if err := LogEvent(ctx, "audit.test", map[string]any{"foo": "bar"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "audit.test" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["user_id"] != "user-42" {
		t.Fatalf("unexpected user id: %v", entry["user_id"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["foo"] != "bar" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for blank event name")
	}
}

func TestLogWalletMutation(t *testing.T) {
	buf := captureLog(t)

	if err := LogWalletMutation(context.Background(), "deposit", "user-7", ledger.TxDeposit, 100_000, "dep-1"); err != nil {
		t.Fatalf("LogWalletMutation: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["event"] != "wallet.deposit" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	fields := entry["fields"].(map[string]any)
	if fields["wallet_user"] != "user-7" || fields["tx_type"] != "DEPOSIT" {
		t.Fatalf("fields incorrect: %v", fields)
	}
	if fields["amount"].(float64) != 100000 {
		t.Fatalf("amount = %v, want 100000", fields["amount"])
	}
}

func TestLogInvariantBreach(t *testing.T) {
	buf := captureLog(t)

	if err := LogInvariantBreach(context.Background(), 900, 1_000); err != nil {
		t.Fatalf("LogInvariantBreach: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	fields := entry["fields"].(map[string]any)
	if fields["drift"].(float64) != 100 {
		t.Fatalf("drift = %v, want 100", fields["drift"])
	}
}
