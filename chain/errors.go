package chain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

var (
	// ErrStreamClosed is returned by Recv after Close or server-side teardown.
	ErrStreamClosed = errors.New("log stream closed")

	// ErrTxNotFound is returned when the node has no record of a signature.
	ErrTxNotFound = errors.New("transaction not found")
)

// Error wraps a node failure with its transport classification. The adapter
// backs off and retries Retryable failures itself, and the live worker
// reconnects after a Retryable stream error; any other error that reaches a
// worker, including a Retryable one in the catch-up walk, fails the
// subscription.
type Error struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("chain %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err (anywhere in its chain) is a retryable
// adapter error. Unclassified errors are treated as fatal.
func IsRetryable(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// classify wraps a raw node error. Rate limiting, timeouts and connection
// drops are retryable; JSON-RPC protocol rejections are fatal.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err, Retryable: retryable(err)}
}

func retryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var httpErr *jsonrpc.HTTPError
	if errors.As(err, &httpErr) {
		// 429 and server-side 5xx are throttling or transient outages.
		return httpErr.Code == 429 || httpErr.Code >= 500
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		// Node rejected the request itself; retrying sends the same bytes.
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	if strings.Contains(msg, "429") || strings.Contains(msg, "Too many requests") ||
		strings.Contains(msg, "connection reset") || strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "broken pipe") {
		return true
	}
	return false
}
