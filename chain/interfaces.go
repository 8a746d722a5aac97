// Package chain is the thin adapter over the blockchain node. It exposes the
// three operations the event engine and submitter need, classifies transport
// failures as retryable or fatal, and pins a deterministic order on
// signatures that share a slot.
package chain

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
)

// SignatureInfo is one entry of a historical signature page.
type SignatureInfo struct {
	Signature solana.Signature
	Slot      uint64
	BlockTime int64
	Failed    bool
}

// TxInfo is a fetched transaction reduced to what the decoder consumes.
type TxInfo struct {
	Signature solana.Signature
	Slot      uint64
	BlockTime int64
	Logs      []string
	Failed    bool
}

// LogNotification is one frame of a live log subscription.
type LogNotification struct {
	Signature solana.Signature
	Slot      uint64
	Logs      []string
	Failed    bool
}

// LogStream is a live log subscription on one PDA. Recv blocks until the next
// notification, a stream error, or ctx cancellation. Close is idempotent.
type LogStream interface {
	Recv(ctx context.Context) (*LogNotification, error)
	Close()
}

// Client is the node capability the engine is polymorphic over. SignaturesFor
// returns newest-first pages bounded by before/until (either may be zero).
// Implementations must order entries deterministically within a slot.
type Client interface {
	SignaturesFor(ctx context.Context, pda solana.PublicKey, before, until solana.Signature, limit int) ([]SignatureInfo, error)
	FetchTx(ctx context.Context, sig solana.Signature) (*TxInfo, error)
	SubscribeLogs(ctx context.Context, pda solana.PublicKey) (LogStream, error)
}

// AccountReader fetches raw account data for profile lookups.
type AccountReader interface {
	FetchAccount(ctx context.Context, pda solana.PublicKey) ([]byte, error)
}

// Broadcaster is the submit-side node capability.
type Broadcaster interface {
	SendRawTransaction(ctx context.Context, signedTx []byte) (solana.Signature, error)
	SignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error)
}

// SignatureStatus reports confirmation progress for a submitted transaction.
type SignatureStatus struct {
	Slot               uint64
	ConfirmationStatus rpc.ConfirmationStatusType
	Err                interface{}
}

// rpcClient is the subset of the solana-go RPC client the adapter calls.
type rpcClient interface {
	GetHealth(ctx context.Context) (string, error)
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	GetSignaturesForAddressWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error)
	GetTransaction(ctx context.Context, txSig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
	SendRawTransactionWithOpts(ctx context.Context, payload []byte, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// wsClient is the subset of the solana-go WebSocket client the adapter calls.
type wsClient interface {
	LogsSubscribeMentions(mentions solana.PublicKey, commitment rpc.CommitmentType) (*ws.LogSubscription, error)
}
