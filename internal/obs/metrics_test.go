package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                 "/",
		"/metrics":                         "/metrics",
		"/v1/wallets/user-42":              "/v1/wallets/:user",
		"/v1/wallets/user-42/deposit":      "/v1/wallets/:user/deposit",
		"/v1/wallets/user-42/withdraw":     "/v1/wallets/:user/withdraw",
		"/v1/wallets/user-42/lock":         "/v1/wallets/:user/lock",
		"/v1/wallets/user-42/release":      "/v1/wallets/:user/release",
		"/v1/wallets/user-42/extra":        "/v1/wallets/user-42/extra",
		"/v1/ledger/lines":                 "/v1/ledger/lines",
		"/v1/ledger/lines?limit=10":        "/v1/ledger/lines",
		"/v1/ledger/accounts/BANK/balance": "/v1/ledger/accounts/:code/balance",
		"/v1/invariant":                    "/v1/invariant",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
