package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// rpcRequest is a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int64         `json:"id"`
}

// rpcResponse is a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      int64           `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// WSClient is a mirror/consensus node client over a persistent WebSocket
// connection, grounded on the same JSON-RPC request/response shape as a
// Substrate chain client.
type WSClient struct {
	endpoint string
	timeout  time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
	next int64
}

// NewWSClient dials endpoint and returns a ready client.
func NewWSClient(endpoint string) (*WSClient, error) {
	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger node: %w", err)
	}
	return &WSClient{endpoint: endpoint, conn: conn, timeout: 30 * time.Second}, nil
}

// Close closes the underlying WebSocket connection.
func (c *WSClient) Close() error {
	return c.conn.Close()
}

func (c *WSClient) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	id := atomic.AddInt64(&c.next, 1)
	req := rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: id}

	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		_ = c.conn.SetReadDeadline(deadline)
	} else {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
		_ = c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	}

	if err := c.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("ledger rpc write failed: %w", err)
	}

	var resp rpcResponse
	if err := c.conn.ReadJSON(&resp); err != nil {
		return nil, fmt.Errorf("ledger rpc read failed: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("ledger rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}

// GetTransaction implements MirrorClient by querying the mirror node's
// transaction-by-id RPC method.
func (c *WSClient) GetTransaction(ctx context.Context, transactionID string) (MirrorTransaction, error) {
	raw, err := c.call(ctx, "mirror_getTransaction", []interface{}{transactionID})
	if err != nil {
		return MirrorTransaction{}, err
	}
	if raw == nil {
		return MirrorTransaction{}, ErrTransactionNotFound
	}

	var tx MirrorTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return MirrorTransaction{}, fmt.Errorf("decoding mirror transaction: %w", err)
	}
	if tx.TransactionID == "" {
		return MirrorTransaction{}, ErrTransactionNotFound
	}
	return tx, nil
}

// SubmitTransfer implements TransferSubmitter by submitting a native ledger
// transfer and returning its transaction id.
func (c *WSClient) SubmitTransfer(ctx context.Context, from, to, amount, network string) (string, error) {
	raw, err := c.call(ctx, "ledger_submitTransfer", []interface{}{from, to, amount, network})
	if err != nil {
		return "", err
	}
	var out struct {
		TransactionID string `json:"transactionId"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decoding submit-transfer result: %w", err)
	}
	return out.TransactionID, nil
}
