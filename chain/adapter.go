package chain

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
)

// ErrLogsTruncated marks a fetched transaction whose log output the node did
// not return in full. The transaction cannot be decoded and is poisoned.
var ErrLogsTruncated = errors.New("transaction logs truncated")

// Options tune the adapter. Zero values fall back to defaults.
type Options struct {
	Commitment  rpc.CommitmentType
	CallTimeout time.Duration
	MaxRetries  int
	Backoff     Backoff
}

func (o Options) withDefaults() Options {
	if o.Commitment == "" {
		o.Commitment = rpc.CommitmentConfirmed
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 30 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 5
	}
	if o.Backoff == (Backoff{}) {
		o.Backoff = DefaultBackoff()
	}
	return o
}

// Adapter implements Client and Broadcaster over the solana-go RPC and
// WebSocket clients. Retryable failures are retried in place with backoff,
// bounded by MaxRetries; what escapes is already classified.
type Adapter struct {
	logger log.Logger
	rpc    rpcClient
	ws     wsClient
	opts   Options
}

func NewAdapter(logger log.Logger, rc rpcClient, wc wsClient, opts Options) *Adapter {
	return &Adapter{
		logger: logger.With("module", "chain"),
		rpc:    rc,
		ws:     wc,
		opts:   opts.withDefaults(),
	}
}

// Dial constructs an adapter with real node clients.
func Dial(ctx context.Context, logger log.Logger, rpcURL, wsURL string, opts Options) (*Adapter, error) {
	wsc, err := ws.Connect(ctx, wsURL)
	if err != nil {
		return nil, classify("ws_connect", err)
	}
	return NewAdapter(logger, rpc.New(rpcURL), wsc, opts), nil
}

func (a *Adapter) SignaturesFor(ctx context.Context, pda solana.PublicKey, before, until solana.Signature, limit int) ([]SignatureInfo, error) {
	opts := &rpc.GetSignaturesForAddressOpts{
		Commitment: a.opts.Commitment,
	}
	if limit > 0 {
		opts.Limit = &limit
	}
	if !before.IsZero() {
		opts.Before = before
	}
	if !until.IsZero() {
		opts.Until = until
	}

	var page []*rpc.TransactionSignature
	err := a.retry(ctx, "signatures_for", func(callCtx context.Context) error {
		var err error
		page, err = a.rpc.GetSignaturesForAddressWithOpts(callCtx, pda, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]SignatureInfo, 0, len(page))
	for _, s := range page {
		info := SignatureInfo{
			Signature: s.Signature,
			Slot:      s.Slot,
			Failed:    s.Err != nil,
		}
		if s.BlockTime != nil {
			info.BlockTime = s.BlockTime.Time().Unix()
		}
		out = append(out, info)
	}

	// The node does not promise an order among transactions of one slot.
	// Pin a total order: slot descending, then signature descending, so the
	// reversed walk is strictly ascending.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Slot != out[j].Slot {
			return out[i].Slot > out[j].Slot
		}
		return bytes.Compare(out[i].Signature[:], out[j].Signature[:]) > 0
	})
	return out, nil
}

func (a *Adapter) FetchTx(ctx context.Context, sig solana.Signature) (*TxInfo, error) {
	maxVersion := uint64(0)
	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     a.opts.Commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	}

	var res *rpc.GetTransactionResult
	err := a.retry(ctx, "fetch_tx", func(callCtx context.Context) error {
		var err error
		res, err = a.rpc.GetTransaction(callCtx, sig, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		// Commitment lag: the signature page saw it, the fetch did not yet.
		return nil, &Error{Op: "fetch_tx", Err: ErrTxNotFound, Retryable: true}
	}
	if res.Meta == nil || res.Meta.LogMessages == nil {
		return nil, &Error{Op: "fetch_tx", Err: ErrLogsTruncated, Retryable: false}
	}

	info := &TxInfo{
		Signature: sig,
		Slot:      res.Slot,
		Logs:      res.Meta.LogMessages,
		Failed:    res.Meta.Err != nil,
	}
	if res.BlockTime != nil {
		info.BlockTime = res.BlockTime.Time().Unix()
	}
	return info, nil
}

func (a *Adapter) SubscribeLogs(ctx context.Context, pda solana.PublicKey) (LogStream, error) {
	sub, err := a.ws.LogsSubscribeMentions(pda, a.opts.Commitment)
	if err != nil {
		return nil, classify("subscribe_logs", err)
	}
	a.logger.Debug("log subscription opened", "pda", pda.String())
	return &logStream{sub: sub}, nil
}

func (a *Adapter) SendRawTransaction(ctx context.Context, signedTx []byte) (solana.Signature, error) {
	var sig solana.Signature
	err := a.retry(ctx, "send_tx", func(callCtx context.Context) error {
		var err error
		sig, err = a.rpc.SendRawTransactionWithOpts(callCtx, signedTx, rpc.TransactionOpts{
			PreflightCommitment: a.opts.Commitment,
		})
		return err
	})
	return sig, err
}

func (a *Adapter) SignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error) {
	var res *rpc.GetSignatureStatusesResult
	err := a.retry(ctx, "signature_status", func(callCtx context.Context) error {
		var err error
		res, err = a.rpc.GetSignatureStatuses(callCtx, true, sig)
		return err
	})
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
		return nil, nil
	}
	v := res.Value[0]
	return &SignatureStatus{
		Slot:               v.Slot,
		ConfirmationStatus: v.ConfirmationStatus,
		Err:                v.Err,
	}, nil
}

// ErrAccountNotFound: no account exists at the address (profile closed or
// never created).
var ErrAccountNotFound = errors.New("account not found")

// FetchAccount returns the raw data of the account at pda.
func (a *Adapter) FetchAccount(ctx context.Context, pda solana.PublicKey) ([]byte, error) {
	var res *rpc.GetAccountInfoResult
	err := a.retry(ctx, "fetch_account", func(callCtx context.Context) error {
		var err error
		res, err = a.rpc.GetAccountInfoWithOpts(callCtx, pda, &rpc.GetAccountInfoOpts{
			Commitment: a.opts.Commitment,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, &Error{Op: "fetch_account", Err: ErrAccountNotFound, Retryable: false}
		}
		return nil, err
	}
	if res == nil || res.Value == nil {
		return nil, &Error{Op: "fetch_account", Err: ErrAccountNotFound, Retryable: false}
	}
	return res.Value.Data.GetBinary(), nil
}

// Health asks the node for its health status; any answer other than "ok"
// is an error.
func (a *Adapter) Health(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, a.opts.CallTimeout)
	defer cancel()
	out, err := a.rpc.GetHealth(callCtx)
	if err != nil {
		return classify("get_health", err)
	}
	if out != rpc.HealthOk {
		return &Error{Op: "get_health", Err: errors.New(out), Retryable: true}
	}
	return nil
}

// retry runs one logical call with the per-call timeout, backing off on
// retryable failures until MaxRetries is exhausted.
func (a *Adapter) retry(ctx context.Context, op string, call func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < a.opts.MaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, a.opts.CallTimeout)
		err := call(callCtx)
		cancel()
		if err == nil {
			return nil
		}

		classified := classify(op, err)
		if !IsRetryable(classified) {
			return classified
		}
		lastErr = classified

		a.logger.Debug("retryable node error", "op", op, "attempt", attempt, "error", err)
		if err := a.opts.Backoff.Sleep(ctx, attempt); err != nil {
			return classify(op, err)
		}
	}
	return lastErr
}

// logStream adapts a ws.LogSubscription to LogStream.
type logStream struct {
	sub       *ws.LogSubscription
	closeOnce sync.Once
	closed    chan struct{}
	initOnce  sync.Once
}

func (s *logStream) init() {
	s.initOnce.Do(func() { s.closed = make(chan struct{}) })
}

func (s *logStream) Recv(ctx context.Context) (*LogNotification, error) {
	s.init()
	select {
	case <-s.closed:
		return nil, ErrStreamClosed
	default:
	}

	res, err := s.sub.Recv(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, classify("log_recv", ctx.Err())
		}
		return nil, &Error{Op: "log_recv", Err: err, Retryable: true}
	}
	if res == nil {
		return nil, &Error{Op: "log_recv", Err: ErrStreamClosed, Retryable: true}
	}

	return &LogNotification{
		Signature: res.Value.Signature,
		Slot:      res.Context.Slot,
		Logs:      res.Value.Logs,
		Failed:    res.Value.Err != nil,
	}, nil
}

func (s *logStream) Close() {
	s.init()
	s.closeOnce.Do(func() {
		close(s.closed)
		s.sub.Unsubscribe()
	})
}
