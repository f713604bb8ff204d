package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"niveshpay.org/internal/audit"
	"niveshpay.org/internal/ledger"
	"niveshpay.org/internal/obs"
	"niveshpay.org/internal/stream"
	"niveshpay.org/internal/wallet"
)

type depositRequest struct {
	Amount      int64  `json:"amount"`
	TxType      string `json:"tx_type"`
	Reference   string `json:"reference"`
	Description string `json:"description"`
}

type withdrawRequest struct {
	Amount      int64  `json:"amount"`
	TxType      string `json:"tx_type"`
	Reference   string `json:"reference"`
	Description string `json:"description"`
	Fee         int64  `json:"fee"`
	FeeType     string `json:"fee_type"`
	FromLocked  bool   `json:"from_locked"`
}

type reclassifyRequest struct {
	Amount int64 `json:"amount"`
}

type walletResponse struct {
	UserID          string    `json:"user_id"`
	Available       int64     `json:"available"`
	Locked          int64     `json:"locked"`
	Total           int64     `json:"total"`
	AvailableRupees string    `json:"available_rupees"`
	LockedRupees    string    `json:"locked_rupees"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type balanceResponse struct {
	AccountCode string    `json:"account_code"`
	Balance     int64     `json:"balance"`
	Rupees      string    `json:"rupees"`
	AsOf        time.Time `json:"as_of"`
}

type listLinesResponse struct {
	Items     []ledger.Line `json:"items"`
	NextAfter uint64        `json:"next_after"`
	AsOf      time.Time     `json:"as_of"`
}

// rupees renders paise as a fixed two-decimal rupee string. Conversion
// to major units happens only here, at the boundary.
func rupees(m ledger.Money) string {
	return decimal.New(int64(m), -2).StringFixed(2)
}

func toWalletResponse(w wallet.Wallet) walletResponse {
	return walletResponse{
		UserID:          w.UserID,
		Available:       int64(w.Available),
		Locked:          int64(w.Locked),
		Total:           int64(w.Available) + int64(w.Locked),
		AvailableRupees: rupees(w.Available),
		LockedRupees:    rupees(w.Locked),
		UpdatedAt:       w.UpdatedAt,
	}
}

func (a *API) handleWalletResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/wallets/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	userID := path
	action := ""
	if i := strings.IndexByte(path, '/'); i >= 0 {
		userID = path[:i]
		action = strings.Trim(path[i+1:], "/")
	}
	if userID == "" || len(userID) > 64 {
		writeError(w, r, http.StatusNotFound, "wallet not found")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getWallet(w, r, userID)
	case "deposit":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.deposit(w, r, userID)
	case "withdraw":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.withdraw(w, r, userID)
	case "lock":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.lockFunds(w, r, userID)
	case "release":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.releaseFunds(w, r, userID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) getWallet(w http.ResponseWriter, r *http.Request, userID string) {
	wlt, err := a.wallets.GetWallet(r.Context(), userID)
	if err != nil {
		a.handleWalletError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWalletResponse(wlt))
}

// parseTxType validates a client-supplied transaction type against the
// routing table and its expected wallet side.
func parseTxType(raw string, fallback ledger.TxType, creditsWallet bool) (ledger.TxType, error) {
	typ := fallback
	if s := strings.ToUpper(strings.TrimSpace(raw)); s != "" {
		typ = ledger.TxType(s)
	}
	route, err := ledger.RouteFor(typ)
	if err != nil {
		return "", errors.New("unknown transaction type: " + string(typ))
	}
	if route.CreditsWallet() != creditsWallet {
		return "", errors.New("transaction type " + string(typ) + " does not match this operation")
	}
	return typ, nil
}

func (a *API) deposit(w http.ResponseWriter, r *http.Request, userID string) {
	var req depositRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount <= 0 {
		writeError(w, r, http.StatusBadRequest, "amount must be a positive number of paise")
		return
	}
	typ, err := parseTxType(req.TxType, ledger.TxDeposit, true)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	wlt, err := a.wallets.Deposit(r.Context(), userID, ledger.Money(req.Amount), typ, req.Description, req.Reference)
	if err != nil {
		obs.ObserveWalletOp(string(typ), "error")
		a.handleWalletError(w, r, err)
		return
	}
	obs.ObserveWalletOp(string(typ), "ok")
	obs.AddLedgerLines(2)
	a.publish(r, "deposit", userID, typ, ledger.Money(req.Amount), req.Reference)

	writeJSON(w, http.StatusCreated, toWalletResponse(wlt))
}

func (a *API) withdraw(w http.ResponseWriter, r *http.Request, userID string) {
	var req withdrawRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount <= 0 {
		writeError(w, r, http.StatusBadRequest, "amount must be a positive number of paise")
		return
	}
	if req.Fee < 0 || req.Fee >= req.Amount {
		writeError(w, r, http.StatusBadRequest, "fee must be >= 0 and smaller than amount")
		return
	}
	typ, err := parseTxType(req.TxType, ledger.TxWithdrawal, false)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	opts := wallet.WithdrawOptions{
		Fee:        ledger.Money(req.Fee),
		FromLocked: req.FromLocked,
	}
	if req.FeeType != "" {
		feeType, err := parseTxType(req.FeeType, ledger.TxTDSDeduction, false)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		opts.FeeType = feeType
	}

	wlt, err := a.wallets.Withdraw(r.Context(), userID, ledger.Money(req.Amount), typ, req.Description, req.Reference, opts)
	if err != nil {
		obs.ObserveWalletOp(string(typ), "error")
		a.handleWalletError(w, r, err)
		return
	}
	obs.ObserveWalletOp(string(typ), "ok")
	if req.Fee > 0 {
		obs.AddLedgerLines(3)
	} else {
		obs.AddLedgerLines(2)
	}
	a.publish(r, "withdraw", userID, typ, ledger.Money(req.Amount), req.Reference)

	writeJSON(w, http.StatusCreated, toWalletResponse(wlt))
}

func (a *API) lockFunds(w http.ResponseWriter, r *http.Request, userID string) {
	var req reclassifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount <= 0 {
		writeError(w, r, http.StatusBadRequest, "amount must be a positive number of paise")
		return
	}
	wlt, err := a.wallets.LockFunds(r.Context(), userID, ledger.Money(req.Amount))
	if err != nil {
		a.handleWalletError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "wallet.lock", map[string]any{
		"wallet_user": userID,
		"amount":      req.Amount,
	})
	writeJSON(w, http.StatusOK, toWalletResponse(wlt))
}

func (a *API) releaseFunds(w http.ResponseWriter, r *http.Request, userID string) {
	var req reclassifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount <= 0 {
		writeError(w, r, http.StatusBadRequest, "amount must be a positive number of paise")
		return
	}
	wlt, err := a.wallets.ReleaseLockedFunds(r.Context(), userID, ledger.Money(req.Amount))
	if err != nil {
		a.handleWalletError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "wallet.release", map[string]any{
		"wallet_user": userID,
		"amount":      req.Amount,
	})
	writeJSON(w, http.StatusOK, toWalletResponse(wlt))
}

// publish mirrors a committed mutation to the audit log and the live
// event stream.
func (a *API) publish(r *http.Request, op, userID string, typ ledger.TxType, amount ledger.Money, reference string) {
	_ = audit.LogWalletMutation(r.Context(), op, userID, typ, amount, reference)
	if a.stream != nil {
		a.stream.Publish(stream.WalletEvent{
			UserID:    userID,
			Operation: op,
			Type:      typ,
			Amount:    amount,
			Reference: reference,
			Timestamp: time.Now().UTC(),
		})
	}
}

func (a *API) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/ledger/accounts/")
	code, ok := strings.CutSuffix(path, "/balance")
	if !ok || code == "" || strings.Contains(code, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	code = strings.ToUpper(code)

	bal, err := a.ledger.BalanceOf(r.Context(), code)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			writeError(w, r, http.StatusNotFound, "account not found")
			return
		}
		a.handleWalletError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		AccountCode: code,
		Balance:     int64(bal),
		Rupees:      rupees(bal),
		AsOf:        time.Now().UTC(),
	})
}

func (a *API) handleLedgerLines(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	afterParam := strings.TrimSpace(r.URL.Query().Get("after"))
	var after uint64
	if afterParam != "" {
		v, err := strconv.ParseUint(afterParam, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "after must be a non-negative integer")
			return
		}
		after = v
	}

	items, next, err := a.ledger.ListLines(r.Context(), limit, after)
	if err != nil {
		a.handleWalletError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listLinesResponse{
		Items:     items,
		NextAfter: next,
		AsOf:      time.Now().UTC(),
	})
}

func (a *API) handleInvariant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	report, err := a.checker.Verify(r.Context())
	if err != nil {
		a.handleWalletError(w, r, err)
		return
	}
	obs.SetInvariant(report.Holds, int64(report.WalletTotal), int64(report.LedgerTotal))
	if !report.Holds {
		_ = audit.LogInvariantBreach(r.Context(), report.WalletTotal, report.LedgerTotal)
	}
	writeJSON(w, http.StatusOK, report)
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("limit must be between 1 and 1000")
	}
	return val, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleWalletError maps domain errors to status codes. Validation
// errors surface their message; internal defects return a generic
// message and an escalation log so they never leak to end users.
func (a *API) handleWalletError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, wallet.ErrInsufficientBalance), errors.Is(err, wallet.ErrInsufficientLocked):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, wallet.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, wallet.ErrLockTimeout):
		w.Header().Set("Retry-After", "1")
		writeError(w, r, http.StatusServiceUnavailable, "wallet busy, retry with backoff")
	default:
		_ = audit.LogEvent(r.Context(), "wallet.internal_error", map[string]any{
			"error": err.Error(),
		})
		writeError(w, r, http.StatusInternalServerError, "operation could not be completed")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
