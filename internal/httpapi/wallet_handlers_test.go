package httpapi

import (
	"net/http"
	"net/url"
	"testing"

	"niveshpay.org/internal/ledger"
	"niveshpay.org/internal/wallet"
)

func TestWalletDepositWithdrawFlow(t *testing.T) {
	c := newTestAPI(t)
	headers := c.authHeaders()

	resp := c.post("/v1/wallets/user-1/deposit", map[string]any{
		"amount":    100000,
		"reference": "dep-1",
	}, headers)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("deposit status: %d", resp.StatusCode)
	}
	w := decode[walletResponse](t, resp)
	if w.Available != 100000 || w.AvailableRupees != "1000.00" {
		t.Fatalf("after deposit: %+v", w)
	}

	resp = c.post("/v1/wallets/user-1/withdraw", map[string]any{
		"amount":    20000,
		"reference": "wd-1",
	}, headers)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("withdraw status: %d", resp.StatusCode)
	}
	w = decode[walletResponse](t, resp)
	if w.Available != 80000 || w.AvailableRupees != "800.00" {
		t.Fatalf("after withdraw: %+v", w)
	}

	resp = c.get("/v1/wallets/user-1", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get wallet status: %d", resp.StatusCode)
	}
	w = decode[walletResponse](t, resp)
	if w.Available != 80000 || w.Total != 80000 {
		t.Fatalf("wallet snapshot: %+v", w)
	}

	resp = c.get("/v1/ledger/accounts/"+ledger.AccountUserWalletLiability+"/balance", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("balance status: %d", resp.StatusCode)
	}
	bal := decode[balanceResponse](t, resp)
	if bal.Balance != 80000 || bal.Rupees != "800.00" {
		t.Fatalf("liability balance: %+v", bal)
	}

	resp = c.get("/v1/invariant", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("invariant status: %d", resp.StatusCode)
	}
	report := decode[wallet.Report](t, resp)
	if !report.Holds || report.WalletTotal != 80000 {
		t.Fatalf("invariant report: %+v", report)
	}
}

func TestWalletWithdrawFeeSplit(t *testing.T) {
	c := newTestAPI(t)
	headers := c.authHeaders()

	resp := c.post("/v1/wallets/user-1/deposit", map[string]any{"amount": 100000}, headers)
	resp.Body.Close()

	resp = c.post("/v1/wallets/user-1/withdraw", map[string]any{
		"amount":  30000,
		"tx_type": "INVESTMENT",
		"fee":     5000,
	}, headers)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("investment status: %d", resp.StatusCode)
	}
	w := decode[walletResponse](t, resp)
	if w.Available != 70000 {
		t.Fatalf("after investment: %+v", w)
	}

	resp = c.get("/v1/ledger/accounts/TDS_PAYABLE/balance", nil, headers)
	bal := decode[balanceResponse](t, resp)
	if bal.Balance != 5000 {
		t.Fatalf("tds balance = %d, want 5000", bal.Balance)
	}

	resp = c.get("/v1/ledger/accounts/INVESTMENT_POOL/balance", nil, headers)
	bal = decode[balanceResponse](t, resp)
	if bal.Balance != 25000 {
		t.Fatalf("investment pool = %d, want 25000", bal.Balance)
	}
}

func TestWalletLockRelease(t *testing.T) {
	c := newTestAPI(t)
	headers := c.authHeaders()

	resp := c.post("/v1/wallets/user-1/deposit", map[string]any{"amount": 50000}, headers)
	resp.Body.Close()

	resp = c.post("/v1/wallets/user-1/lock", map[string]any{"amount": 30000}, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lock status: %d", resp.StatusCode)
	}
	w := decode[walletResponse](t, resp)
	if w.Available != 20000 || w.Locked != 30000 {
		t.Fatalf("after lock: %+v", w)
	}

	resp = c.post("/v1/wallets/user-1/release", map[string]any{"amount": 10000}, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("release status: %d", resp.StatusCode)
	}
	w = decode[walletResponse](t, resp)
	if w.Available != 30000 || w.Locked != 20000 {
		t.Fatalf("after release: %+v", w)
	}

	// Lock/release do not append journal lines.
	resp = c.get("/v1/ledger/lines", nil, headers)
	lines := decode[listLinesResponse](t, resp)
	if len(lines.Items) != 2 {
		t.Fatalf("expected only the deposit's 2 lines, got %d", len(lines.Items))
	}
}

func TestWalletErrors(t *testing.T) {
	c := newTestAPI(t)
	headers := c.authHeaders()

	cases := []struct {
		name   string
		path   string
		body   map[string]any
		status int
	}{
		{"zero amount", "/v1/wallets/u/deposit", map[string]any{"amount": 0}, http.StatusBadRequest},
		{"negative amount", "/v1/wallets/u/deposit", map[string]any{"amount": -5}, http.StatusBadRequest},
		{"unknown type", "/v1/wallets/u/deposit", map[string]any{"amount": 10, "tx_type": "GIFT"}, http.StatusBadRequest},
		{"wrong side type", "/v1/wallets/u/deposit", map[string]any{"amount": 10, "tx_type": "WITHDRAWAL"}, http.StatusBadRequest},
		{"fee too large", "/v1/wallets/u/withdraw", map[string]any{"amount": 10, "fee": 10}, http.StatusBadRequest},
		{"overdraw", "/v1/wallets/u/withdraw", map[string]any{"amount": 10000}, http.StatusConflict},
		{"unknown field", "/v1/wallets/u/deposit", map[string]any{"amount": 10, "amnt": 2}, http.StatusBadRequest},
	}

	resp := c.post("/v1/wallets/u/deposit", map[string]any{"amount": 100}, headers)
	resp.Body.Close()

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := c.post(tc.path, tc.body, headers)
			defer resp.Body.Close()
			if resp.StatusCode != tc.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.status)
			}
		})
	}

	resp = c.get("/v1/wallets/ghost", nil, headers)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown wallet status = %d, want 404", resp.StatusCode)
	}
}

func TestLedgerLinesPaginationParams(t *testing.T) {
	c := newTestAPI(t)
	headers := c.authHeaders()

	for i := 0; i < 3; i++ {
		resp := c.post("/v1/wallets/u/deposit", map[string]any{"amount": 100}, headers)
		resp.Body.Close()
	}

	resp := c.get("/v1/ledger/lines", url.Values{"limit": {"2"}}, headers)
	page := decode[listLinesResponse](t, resp)
	if len(page.Items) != 2 || page.NextAfter == 0 {
		t.Fatalf("first page: %d items, next=%d", len(page.Items), page.NextAfter)
	}

	resp = c.get("/v1/ledger/lines", url.Values{"limit": {"0"}}, headers)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d, want 400", resp.StatusCode)
	}

	resp = c.get("/v1/ledger/lines", url.Values{"after": {"xyz"}}, headers)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad after status = %d, want 400", resp.StatusCode)
	}
}

func TestAccountBalanceUnknownAccount(t *testing.T) {
	c := newTestAPI(t)
	headers := c.authHeaders()

	resp := c.get("/v1/ledger/accounts/NO_SUCH/balance", nil, headers)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
