package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"bankledger/internal/infrastructure/database"
	"bankledger/internal/infrastructure/lock"
	"bankledger/internal/model"
	"bankledger/internal/service"
	"bankledger/pkg/idgen"
	"bankledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	refs, err := idgen.NewReferences(3)
	require.NoError(t, err)

	svc := service.NewLedgerService(database.OpenTestDB(t), lock.NewLocalLocker(), model.DefaultPolicies(), service.Options{
		Topic: "ledger-events",
	}, service.Generators{
		AccountNumbers: idgen.NewAccountNumberGenerator(1),
		TransactionIDs: idgen.NewTransactionIDGenerator(2),
		References:     refs,
	})
	return SetupRouter(svc)
}

func do(t *testing.T, r *gin.Engine, method, path string, body interface{}) envelope {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func openAccount(t *testing.T, r *gin.Engine, owner int64, variant, deposit string) string {
	t.Helper()
	env := do(t, r, http.MethodPost, "/api/v1/accounts", gin.H{
		"owner_id":        owner,
		"variant":         variant,
		"initial_deposit": deposit,
	})
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)

	var account struct {
		AccountNumber string `json:"account_number"`
		Balance       string `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &account))
	assert.Equal(t, deposit, account.Balance)
	return account.AccountNumber
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestOpenAccountValidation(t *testing.T) {
	r := newTestRouter(t)

	env := do(t, r, http.MethodPost, "/api/v1/accounts", gin.H{"owner_id": 1, "variant": "SAVINGS", "initial_deposit": "100.00"})
	assert.Equal(t, response.CodeInsufficientInitialDeposit, env.Code)
	assert.JSONEq(t, `{"balance":"0.00","requested":"100.00","limit":"500.00"}`, string(env.Data))

	env = do(t, r, http.MethodPost, "/api/v1/accounts", gin.H{"owner_id": 1, "variant": "GOLD", "initial_deposit": "1000"})
	assert.Equal(t, response.CodeInvalidVariant, env.Code)

	env = do(t, r, http.MethodPost, "/api/v1/accounts", gin.H{"owner_id": 1, "variant": "SAVINGS", "initial_deposit": "abc"})
	assert.Equal(t, response.CodeInvalidAmount, env.Code)

	env = do(t, r, http.MethodPost, "/api/v1/accounts", gin.H{"variant": "SAVINGS", "initial_deposit": "1000"})
	assert.Equal(t, response.CodeParamError, env.Code)
}

func TestDepositWithdrawAndHistory(t *testing.T) {
	r := newTestRouter(t)
	number := openAccount(t, r, 1, "CURRENT", "1000.00")

	env := do(t, r, http.MethodPost, "/api/v1/accounts/"+number+"/deposit", gin.H{"amount": 25.5})
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	assert.JSONEq(t, `{"account_number":"`+number+`","balance":"1025.50"}`, string(env.Data))

	env = do(t, r, http.MethodPost, "/api/v1/accounts/"+number+"/withdraw", gin.H{"amount": "500.00"})
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	assert.JSONEq(t, `{"account_number":"`+number+`","balance":"515.50"}`, string(env.Data))

	env = do(t, r, http.MethodPost, "/api/v1/accounts/"+number+"/withdraw", gin.H{"amount": "20000.00"})
	assert.Equal(t, response.CodeOverdraftExceeded, env.Code)
	assert.Equal(t, "overdraft exceeded", env.Message)

	env = do(t, r, http.MethodPost, "/api/v1/accounts/"+number+"/withdraw", gin.H{"amount": "0"})
	assert.Equal(t, response.CodeInvalidAmount, env.Code)

	env = do(t, r, http.MethodGet, "/api/v1/accounts/"+number+"/history?limit=2", nil)
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	var page struct {
		Entries []struct {
			Type         string `json:"type"`
			Amount       string `json:"amount"`
			BalanceAfter string `json:"balance_after"`
		} `json:"entries"`
		NextCursor int64 `json:"next_cursor"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Entries, 2)
	assert.Equal(t, "FEE", page.Entries[0].Type)
	assert.Equal(t, "515.50", page.Entries[0].BalanceAfter)
	assert.Equal(t, "WITHDRAWAL", page.Entries[1].Type)
	assert.NotZero(t, page.NextCursor)

	env = do(t, r, http.MethodGet, "/api/v1/accounts/"+number+"/history?limit=x", nil)
	assert.Equal(t, response.CodeParamError, env.Code)
}

func TestTransferAndOwnerViews(t *testing.T) {
	r := newTestRouter(t)
	a := openAccount(t, r, 9, "SAVINGS", "1000.00")
	b := openAccount(t, r, 9, "CURRENT", "1000.00")

	env := do(t, r, http.MethodPost, "/api/v1/transfers", gin.H{"from_account": a, "to_account": b, "amount": "200.00", "description": "rent"})
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	var result struct {
		Reference   string `json:"reference"`
		FromBalance string `json:"from_balance"`
		ToBalance   string `json:"to_balance"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "800.00", result.FromBalance)
	assert.Equal(t, "1200.00", result.ToBalance)
	assert.NotEmpty(t, result.Reference)

	env = do(t, r, http.MethodPost, "/api/v1/transfers", gin.H{"from_account": a, "to_account": a, "amount": "1"})
	assert.Equal(t, response.CodeSameAccountTransfer, env.Code)

	env = do(t, r, http.MethodPost, "/api/v1/transfers", gin.H{"from_account": a, "to_account": "12345", "amount": "1"})
	assert.Equal(t, response.CodeParamError, env.Code)

	env = do(t, r, http.MethodGet, "/api/v1/owners/9/balance", nil)
	require.Equal(t, response.CodeSuccess, env.Code)
	assert.JSONEq(t, `{"owner_id":9,"total_balance":"2000.00"}`, string(env.Data))

	env = do(t, r, http.MethodDelete, "/api/v1/accounts/"+b, nil)
	require.Equal(t, response.CodeSuccess, env.Code)

	env = do(t, r, http.MethodGet, "/api/v1/owners/9/balance", nil)
	assert.JSONEq(t, `{"owner_id":9,"total_balance":"800.00"}`, string(env.Data))

	env = do(t, r, http.MethodGet, "/api/v1/owners/9/accounts", nil)
	var list struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 2, list.Total)

	env = do(t, r, http.MethodPost, "/api/v1/accounts/"+b+"/deposit", gin.H{"amount": "1"})
	assert.Equal(t, response.CodeAccountInactive, env.Code)

	env = do(t, r, http.MethodGet, "/api/v1/owners/abc/balance", nil)
	assert.Equal(t, response.CodeParamError, env.Code)
}

func TestUnknownAccount(t *testing.T) {
	r := newTestRouter(t)

	env := do(t, r, http.MethodGet, "/api/v1/accounts/000000000000", nil)
	assert.Equal(t, response.CodeAccountNotFound, env.Code)
	assert.JSONEq(t, `{"account_number":"000000000000"}`, string(env.Data))

	env = do(t, r, http.MethodGet, "/api/v1/accounts/not-a-number", nil)
	assert.Equal(t, response.CodeParamError, env.Code)
}

func TestGetTransaction(t *testing.T) {
	r := newTestRouter(t)
	number := openAccount(t, r, 4, "CURRENT", "1000.00")

	env := do(t, r, http.MethodPost, "/api/v1/accounts/"+number+"/withdraw", gin.H{"amount": "100.00"})
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)

	env = do(t, r, http.MethodGet, "/api/v1/accounts/"+number+"/history", nil)
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	var page struct {
		Entries []struct {
			TransactionID string `json:"transaction_id"`
			Reference     string `json:"reference"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Entries, 2)

	env = do(t, r, http.MethodGet, "/api/v1/transactions/"+page.Entries[0].TransactionID, nil)
	require.Equal(t, response.CodeSuccess, env.Code, env.Message)
	var entry struct {
		TransactionID string `json:"transaction_id"`
		AccountNumber string `json:"account_number"`
		Type          string `json:"type"`
		Amount        string `json:"amount"`
		BalanceAfter  string `json:"balance_after"`
		Reference     string `json:"reference"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &entry))
	assert.Equal(t, page.Entries[0].TransactionID, entry.TransactionID)
	assert.Equal(t, number, entry.AccountNumber)
	assert.Equal(t, "FEE", entry.Type)
	assert.Equal(t, "10.00", entry.Amount)
	assert.Equal(t, "890.00", entry.BalanceAfter)
	assert.Equal(t, page.Entries[1].Reference, entry.Reference)

	env = do(t, r, http.MethodGet, "/api/v1/transactions/TXN0000000000", nil)
	assert.Equal(t, response.CodeTransactionNotFound, env.Code)
	assert.Equal(t, "transaction not found", env.Message)

	env = do(t, r, http.MethodGet, "/api/v1/transactions/abc", nil)
	assert.Equal(t, response.CodeParamError, env.Code)
}
