package types

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// EventKind is the stable name of an event variant. The set is sealed: the
// decoder maps unknown discriminators to nothing, never to a loose bag of
// fields.
type EventKind string

const (
	KindAdminProfileCreated    EventKind = "AdminProfileCreated"
	KindAdminConfigUpdated     EventKind = "AdminConfigUpdated"
	KindAdminWithdrawn         EventKind = "AdminWithdrawn"
	KindUserBanned             EventKind = "UserBanned"
	KindUserUnbanned           EventKind = "UserUnbanned"
	KindAdminCommandDispatched EventKind = "AdminCommandDispatched"
	KindAdminProfileClosed     EventKind = "AdminProfileClosed"
	KindUserProfileCreated     EventKind = "UserProfileCreated"
	KindUserDeposited          EventKind = "UserDeposited"
	KindUserWithdrawn          EventKind = "UserWithdrawn"
	KindUserCommKeyUpdated     EventKind = "UserCommKeyUpdated"
	KindUserUnbanRequested     EventKind = "UserUnbanRequested"
	KindUserCommandDispatched  EventKind = "UserCommandDispatched"
	KindUserProfileClosed      EventKind = "UserProfileClosed"
	KindActionLogged           EventKind = "ActionLogged"
)

// Event is the sealed tagged variant emitted on successful instruction
// execution. Primary returns the PDA the event concerns; Concerned returns
// every profile PDA mentioned by the payload (primary first).
type Event interface {
	Kind() EventKind
	Primary() solana.PublicKey
	Concerned() []solana.PublicKey
	Timestamp() int64
}

type AdminProfileCreated struct {
	Admin     solana.PublicKey
	Authority solana.PublicKey
	Oracle    solana.PublicKey
	CommKey   solana.PublicKey
	UnbanFee  uint64
	Ts        int64
}

func (e *AdminProfileCreated) Kind() EventKind { return KindAdminProfileCreated }
func (e *AdminProfileCreated) Primary() solana.PublicKey { return e.Admin }
func (e *AdminProfileCreated) Concerned() []solana.PublicKey { return []solana.PublicKey{e.Admin} }
func (e *AdminProfileCreated) Timestamp() int64 { return e.Ts }

type AdminConfigUpdated struct {
	Admin    solana.PublicKey
	Oracle   solana.PublicKey
	CommKey  solana.PublicKey
	UnbanFee uint64
	Ts       int64
}

func (e *AdminConfigUpdated) Kind() EventKind { return KindAdminConfigUpdated }
func (e *AdminConfigUpdated) Primary() solana.PublicKey { return e.Admin }
func (e *AdminConfigUpdated) Concerned() []solana.PublicKey { return []solana.PublicKey{e.Admin} }
func (e *AdminConfigUpdated) Timestamp() int64 { return e.Ts }

type AdminWithdrawn struct {
	Admin       solana.PublicKey
	Destination solana.PublicKey
	Amount      uint64
	Ts          int64
}

func (e *AdminWithdrawn) Kind() EventKind { return KindAdminWithdrawn }
func (e *AdminWithdrawn) Primary() solana.PublicKey { return e.Admin }
func (e *AdminWithdrawn) Concerned() []solana.PublicKey { return []solana.PublicKey{e.Admin} }
func (e *AdminWithdrawn) Timestamp() int64 { return e.Ts }

type UserBanned struct {
	User  solana.PublicKey
	Admin solana.PublicKey
	Ts    int64
}

func (e *UserBanned) Kind() EventKind { return KindUserBanned }
func (e *UserBanned) Primary() solana.PublicKey { return e.User }
func (e *UserBanned) Concerned() []solana.PublicKey {
	return []solana.PublicKey{e.User, e.Admin}
}
func (e *UserBanned) Timestamp() int64 { return e.Ts }

type UserUnbanned struct {
	User  solana.PublicKey
	Admin solana.PublicKey
	Ts    int64
}

func (e *UserUnbanned) Kind() EventKind { return KindUserUnbanned }
func (e *UserUnbanned) Primary() solana.PublicKey { return e.User }
func (e *UserUnbanned) Concerned() []solana.PublicKey {
	return []solana.PublicKey{e.User, e.Admin}
}
func (e *UserUnbanned) Timestamp() int64 { return e.Ts }

type AdminCommandDispatched struct {
	Admin     solana.PublicKey
	User      solana.PublicKey
	CommandID uint16
	Payload   []byte
	Ts        int64
}

func (e *AdminCommandDispatched) Kind() EventKind { return KindAdminCommandDispatched }
func (e *AdminCommandDispatched) Primary() solana.PublicKey { return e.Admin }
func (e *AdminCommandDispatched) Concerned() []solana.PublicKey {
	return []solana.PublicKey{e.Admin, e.User}
}
func (e *AdminCommandDispatched) Timestamp() int64 { return e.Ts }

type AdminProfileClosed struct {
	Admin     solana.PublicKey
	Authority solana.PublicKey
	Refund    uint64
	Ts        int64
}

func (e *AdminProfileClosed) Kind() EventKind { return KindAdminProfileClosed }
func (e *AdminProfileClosed) Primary() solana.PublicKey { return e.Admin }
func (e *AdminProfileClosed) Concerned() []solana.PublicKey { return []solana.PublicKey{e.Admin} }
func (e *AdminProfileClosed) Timestamp() int64 { return e.Ts }

type UserProfileCreated struct {
	User      solana.PublicKey
	Admin     solana.PublicKey
	Authority solana.PublicKey
	CommKey   solana.PublicKey
	Ts        int64
}

func (e *UserProfileCreated) Kind() EventKind { return KindUserProfileCreated }
func (e *UserProfileCreated) Primary() solana.PublicKey { return e.User }
func (e *UserProfileCreated) Concerned() []solana.PublicKey {
	return []solana.PublicKey{e.User, e.Admin}
}
func (e *UserProfileCreated) Timestamp() int64 { return e.Ts }

type UserDeposited struct {
	User   solana.PublicKey
	Amount uint64
	Ts     int64
}

func (e *UserDeposited) Kind() EventKind { return KindUserDeposited }
func (e *UserDeposited) Primary() solana.PublicKey { return e.User }
func (e *UserDeposited) Concerned() []solana.PublicKey { return []solana.PublicKey{e.User} }
func (e *UserDeposited) Timestamp() int64 { return e.Ts }

type UserWithdrawn struct {
	User        solana.PublicKey
	Destination solana.PublicKey
	Amount      uint64
	Ts          int64
}

func (e *UserWithdrawn) Kind() EventKind { return KindUserWithdrawn }
func (e *UserWithdrawn) Primary() solana.PublicKey { return e.User }
func (e *UserWithdrawn) Concerned() []solana.PublicKey { return []solana.PublicKey{e.User} }
func (e *UserWithdrawn) Timestamp() int64 { return e.Ts }

type UserCommKeyUpdated struct {
	User    solana.PublicKey
	CommKey solana.PublicKey
	Ts      int64
}

func (e *UserCommKeyUpdated) Kind() EventKind { return KindUserCommKeyUpdated }
func (e *UserCommKeyUpdated) Primary() solana.PublicKey { return e.User }
func (e *UserCommKeyUpdated) Concerned() []solana.PublicKey { return []solana.PublicKey{e.User} }
func (e *UserCommKeyUpdated) Timestamp() int64 { return e.Ts }

type UserUnbanRequested struct {
	User  solana.PublicKey
	Admin solana.PublicKey
	Fee   uint64
	Ts    int64
}

func (e *UserUnbanRequested) Kind() EventKind { return KindUserUnbanRequested }
func (e *UserUnbanRequested) Primary() solana.PublicKey { return e.User }
func (e *UserUnbanRequested) Concerned() []solana.PublicKey {
	return []solana.PublicKey{e.User, e.Admin}
}
func (e *UserUnbanRequested) Timestamp() int64 { return e.Ts }

type UserCommandDispatched struct {
	User      solana.PublicKey
	Admin     solana.PublicKey
	CommandID uint16
	Price     uint64
	Payload   []byte
	Ts        int64
}

func (e *UserCommandDispatched) Kind() EventKind { return KindUserCommandDispatched }
func (e *UserCommandDispatched) Primary() solana.PublicKey { return e.User }
func (e *UserCommandDispatched) Concerned() []solana.PublicKey {
	return []solana.PublicKey{e.User, e.Admin}
}
func (e *UserCommandDispatched) Timestamp() int64 { return e.Ts }

type UserProfileClosed struct {
	User      solana.PublicKey
	Authority solana.PublicKey
	Ts        int64
}

func (e *UserProfileClosed) Kind() EventKind { return KindUserProfileClosed }
func (e *UserProfileClosed) Primary() solana.PublicKey { return e.User }
func (e *UserProfileClosed) Concerned() []solana.PublicKey { return []solana.PublicKey{e.User} }
func (e *UserProfileClosed) Timestamp() int64 { return e.Ts }

type ActionLogged struct {
	Actor    solana.PublicKey
	ActionID uint16
	Payload  []byte
	Ts       int64
}

func (e *ActionLogged) Kind() EventKind { return KindActionLogged }
func (e *ActionLogged) Primary() solana.PublicKey { return e.Actor }
func (e *ActionLogged) Concerned() []solana.PublicKey { return []solana.PublicKey{e.Actor} }
func (e *ActionLogged) Timestamp() int64 { return e.Ts }

// Warning flags attached to a delivered event describing degraded delivery
// on the path, never a change to the event itself.
type Warning struct {
	// LiveBacklogOverflow reports how many pre-release live events were
	// dropped before this one; the catch-up walk covers the gap.
	LiveBacklogOverflow uint64
	// Lagged reports how many events this listener's queue dropped before
	// this one because the consumer fell behind.
	Lagged uint64
}

func (w Warning) Zero() bool { return w.LiveBacklogOverflow == 0 && w.Lagged == 0 }

// Record is the unit the engine delivers: a decoded event plus its position
// in the chain and any delivery warnings.
type Record struct {
	Signature solana.Signature
	Slot      uint64
	BlockTime int64
	// Index is the event's position within its transaction's log output.
	Index   int
	Event   Event
	Warning Warning
}

func (r *Record) String() string {
	return fmt.Sprintf("%s@%d/%d %s", r.Signature, r.Slot, r.Index, r.Event.Kind())
}
