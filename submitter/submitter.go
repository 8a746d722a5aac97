// Package submitter sends externally-signed transactions and awaits
// confirmation. It owns no keys and never retries an execution failure:
// what the chain rejected is returned to the caller as-is.
package submitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cosmossdk.io/log"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/w3b2/w3b2-solana-go/chain"
)

var (
	// ErrTimeout: the transaction did not reach the requested commitment in
	// time. It may still land; the caller decides how to follow up.
	ErrTimeout = errors.New("confirmation timed out")

	// ErrPreflight: the node rejected the transaction before execution.
	ErrPreflight = errors.New("preflight rejected")
)

// ExecutionError is an on-chain failure of a confirmed transaction. Code is
// the program-specific error number when the program raised one.
type ExecutionError struct {
	Code   uint32
	Custom bool
	Raw    interface{}
}

func (e *ExecutionError) Error() string {
	if e.Custom {
		return fmt.Sprintf("on-chain execution failed: custom program error %d", e.Code)
	}
	return fmt.Sprintf("on-chain execution failed: %v", e.Raw)
}

// Options tune confirmation behavior.
type Options struct {
	Commitment   rpc.ConfirmationStatusType
	Timeout      time.Duration
	PollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Commitment == "" {
		o.Commitment = rpc.ConfirmationStatusConfirmed
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	return o
}

// Submitter broadcasts signed transaction blobs through the chain adapter.
type Submitter struct {
	logger log.Logger
	client chain.Broadcaster
	opts   Options
}

func New(logger log.Logger, client chain.Broadcaster, opts Options) *Submitter {
	return &Submitter{
		logger: logger.With("module", "submitter"),
		client: client,
		opts:   opts.withDefaults(),
	}
}

// Submit sends the fully-signed transaction bytes and blocks until the
// configured commitment, a terminal failure, or timeout.
func (s *Submitter) Submit(ctx context.Context, signedTx []byte) (solana.Signature, error) {
	if len(signedTx) == 0 {
		return solana.Signature{}, fmt.Errorf("%w: empty transaction", ErrPreflight)
	}

	sig, err := s.client.SendRawTransaction(ctx, signedTx)
	if err != nil {
		// The node vets the transaction before accepting it; a non-transport
		// rejection here is a preflight failure.
		if chain.IsRetryable(err) {
			return solana.Signature{}, err
		}
		return solana.Signature{}, fmt.Errorf("%w: %v", ErrPreflight, err)
	}

	s.logger.Debug("transaction sent", "signature", sig.String())
	if err := s.awaitConfirmation(ctx, sig); err != nil {
		return sig, err
	}

	s.logger.Info("transaction confirmed", "signature", sig.String(), "commitment", string(s.opts.Commitment))
	return sig, nil
}

func (s *Submitter) awaitConfirmation(ctx context.Context, sig solana.Signature) error {
	deadline := time.NewTimer(s.opts.Timeout)
	defer deadline.Stop()
	tick := time.NewTicker(s.opts.PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: %s", ErrTimeout, sig)
		case <-tick.C:
		}

		status, err := s.client.SignatureStatus(ctx, sig)
		if err != nil {
			// Transport trouble while polling; keep waiting out the window.
			s.logger.Debug("status poll failed", "signature", sig.String(), "error", err)
			continue
		}
		if status == nil {
			continue
		}
		if status.Err != nil {
			return newExecutionError(status.Err)
		}
		if reached(status.ConfirmationStatus, s.opts.Commitment) {
			return nil
		}
	}
}

// reached orders processed < confirmed < finalized.
func reached(got, want rpc.ConfirmationStatusType) bool {
	rank := func(c rpc.ConfirmationStatusType) int {
		switch c {
		case rpc.ConfirmationStatusProcessed:
			return 1
		case rpc.ConfirmationStatusConfirmed:
			return 2
		case rpc.ConfirmationStatusFinalized:
			return 3
		default:
			return 0
		}
	}
	return rank(got) >= rank(want)
}

// newExecutionError digs the program-specific code out of the node's error
// shape, e.g. {"InstructionError":[1,{"Custom":6001}]}.
func newExecutionError(raw interface{}) *ExecutionError {
	ee := &ExecutionError{Raw: raw}

	m, ok := raw.(map[string]interface{})
	if !ok {
		return ee
	}
	ie, ok := m["InstructionError"].([]interface{})
	if !ok || len(ie) != 2 {
		return ee
	}
	detail, ok := ie[1].(map[string]interface{})
	if !ok {
		return ee
	}
	if custom, ok := detail["Custom"]; ok {
		switch v := custom.(type) {
		case float64:
			ee.Code = uint32(v)
			ee.Custom = true
		case int:
			ee.Code = uint32(v)
			ee.Custom = true
		}
	}
	return ee
}
