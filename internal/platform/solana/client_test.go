package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/perpdex/internal/domain"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeNode answers JSON-RPC calls from a method → result table and records
// the requests it saw.
type fakeNode struct {
	mu       sync.Mutex
	results  map[string]any
	requests []rpcRequest
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n.mu.Lock()
	n.requests = append(n.requests, req)
	result, ok := n.results[req.Method]
	n.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if !ok {
		resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *fakeNode) last() rpcRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.requests[len(n.requests)-1]
}

func newTestClient(t *testing.T, node *fakeNode) *Client {
	t.Helper()
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)
	c, err := Dial(context.Background(), Config{URL: srv.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func testKey(b byte) domain.PublicKey {
	var pk domain.PublicKey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

func accountResult(data []byte, owner domain.PublicKey) map[string]any {
	return map[string]any{
		"data":       []string{base64.StdEncoding.EncodeToString(data), "base64"},
		"lamports":   1_000,
		"owner":      owner.String(),
		"executable": false,
	}
}

func TestGetAccount(t *testing.T) {
	owner := testKey(9)
	node := &fakeNode{results: map[string]any{
		"getAccountInfo": map[string]any{
			"context": map[string]any{"slot": 1},
			"value":   accountResult([]byte{1, 2, 3}, owner),
		},
	}}
	c := newTestClient(t, node)

	acct, err := c.GetAccount(context.Background(), testKey(1))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, acct.Data)
	assert.Equal(t, owner, acct.Owner)
	assert.Equal(t, uint64(1_000), acct.Lamports)

	req := node.last()
	assert.Equal(t, "getAccountInfo", req.Method)
	require.Len(t, req.Params, 2)
	assert.JSONEq(t, `"`+testKey(1).String()+`"`, string(req.Params[0]))
	assert.JSONEq(t, `{"encoding":"base64","commitment":"confirmed"}`, string(req.Params[1]))
}

func TestGetAccountMissing(t *testing.T) {
	node := &fakeNode{results: map[string]any{
		"getAccountInfo": map[string]any{"context": map[string]any{"slot": 1}, "value": nil},
	}}
	c := newTestClient(t, node)

	_, err := c.GetAccount(context.Background(), testKey(1))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetAccountRPCError(t *testing.T) {
	c := newTestClient(t, &fakeNode{results: map[string]any{}})
	_, err := c.GetAccount(context.Background(), testKey(1))
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}

func TestGetMultipleAccounts(t *testing.T) {
	node := &fakeNode{results: map[string]any{
		"getMultipleAccounts": map[string]any{
			"context": map[string]any{"slot": 1},
			"value":   []any{accountResult([]byte{7}, testKey(9)), nil},
		},
	}}
	c := newTestClient(t, node)

	accts, err := c.GetMultipleAccounts(context.Background(), []domain.PublicKey{testKey(1), testKey(2)})
	require.NoError(t, err)
	require.Len(t, accts, 2)
	require.NotNil(t, accts[0])
	assert.Equal(t, []byte{7}, accts[0].Data)
	assert.Nil(t, accts[1])
}

func TestGetProgramAccountsFilters(t *testing.T) {
	node := &fakeNode{results: map[string]any{
		"getProgramAccounts": []any{
			map[string]any{"pubkey": testKey(3).String(), "account": accountResult([]byte{5, 5}, testKey(8))},
		},
	}}
	c := newTestClient(t, node)

	owner := testKey(4)
	accts, err := c.GetProgramAccounts(context.Background(), testKey(8),
		domain.MemcmpFilter{Offset: 0, Bytes: []byte{1, 2, 3, 4, 5, 6, 7, 8}},
		domain.MemcmpFilter{Offset: 8, Bytes: owner.Bytes()},
	)
	require.NoError(t, err)
	require.Len(t, accts, 1)
	assert.Equal(t, testKey(3), accts[0].Key)
	assert.Equal(t, []byte{5, 5}, accts[0].Account.Data)

	var opts struct {
		Encoding string `json:"encoding"`
		Filters  []struct {
			Memcmp struct {
				Offset uint64 `json:"offset"`
				Bytes  string `json:"bytes"`
			} `json:"memcmp"`
		} `json:"filters"`
	}
	req := node.last()
	require.Len(t, req.Params, 2)
	require.NoError(t, json.Unmarshal(req.Params[1], &opts))
	assert.Equal(t, "base64", opts.Encoding)
	require.Len(t, opts.Filters, 2)
	assert.Equal(t, uint64(8), opts.Filters[1].Memcmp.Offset)
	assert.Equal(t, owner.String(), opts.Filters[1].Memcmp.Bytes)
}

func TestBalanceAndBlockhash(t *testing.T) {
	node := &fakeNode{results: map[string]any{
		"getBalance": map[string]any{"context": map[string]any{"slot": 1}, "value": 2_500_000_000},
		"getLatestBlockhash": map[string]any{
			"context": map[string]any{"slot": 1},
			"value":   map[string]any{"blockhash": "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N", "lastValidBlockHeight": 10},
		},
	}}
	c := newTestClient(t, node)

	bal, err := c.GetBalance(context.Background(), testKey(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000_000), bal)

	hash, err := c.GetLatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N", hash)
}

func TestClusterLabel(t *testing.T) {
	assert.Equal(t, "devnet", ClusterLabel("https://api.devnet.solana.com"))
	assert.Equal(t, "testnet", ClusterLabel("https://api.testnet.solana.com"))
	assert.Equal(t, "mainnet-beta", ClusterLabel("https://api.mainnet-beta.solana.com"))
	assert.Equal(t, "custom", ClusterLabel("http://127.0.0.1:8899"))
}
