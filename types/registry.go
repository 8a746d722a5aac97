package types

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// eventFactories maps an event discriminator to a constructor for the
// matching variant. Populated once at init; read-only afterwards.
var eventFactories = map[[8]byte]func() Event{}

func init() {
	register := func(name EventKind, f func() Event) {
		eventFactories[AnchorDiscriminator("event", string(name))] = f
	}
	register(KindAdminProfileCreated, func() Event { return new(AdminProfileCreated) })
	register(KindAdminConfigUpdated, func() Event { return new(AdminConfigUpdated) })
	register(KindAdminWithdrawn, func() Event { return new(AdminWithdrawn) })
	register(KindUserBanned, func() Event { return new(UserBanned) })
	register(KindUserUnbanned, func() Event { return new(UserUnbanned) })
	register(KindAdminCommandDispatched, func() Event { return new(AdminCommandDispatched) })
	register(KindAdminProfileClosed, func() Event { return new(AdminProfileClosed) })
	register(KindUserProfileCreated, func() Event { return new(UserProfileCreated) })
	register(KindUserDeposited, func() Event { return new(UserDeposited) })
	register(KindUserWithdrawn, func() Event { return new(UserWithdrawn) })
	register(KindUserCommKeyUpdated, func() Event { return new(UserCommKeyUpdated) })
	register(KindUserUnbanRequested, func() Event { return new(UserUnbanRequested) })
	register(KindUserCommandDispatched, func() Event { return new(UserCommandDispatched) })
	register(KindUserProfileClosed, func() Event { return new(UserProfileClosed) })
	register(KindActionLogged, func() Event { return new(ActionLogged) })
}

// DecodeEvent parses a discriminator-prefixed Borsh payload into its event
// variant. A discriminator outside the sealed set returns (nil, nil): the
// caller skips it. A recognized discriminator with a malformed body returns
// an error; that transaction is poisoned.
func DecodeEvent(payload []byte) (Event, error) {
	if len(payload) < 8 {
		return nil, fmt.Errorf("event payload too short: %d bytes", len(payload))
	}
	var disc [8]byte
	copy(disc[:], payload[:8])

	factory, ok := eventFactories[disc]
	if !ok {
		return nil, nil
	}

	ev := factory()
	dec := bin.NewBorshDecoder(payload[8:])
	if err := dec.Decode(ev); err != nil {
		return nil, fmt.Errorf("decode %s body: %w", ev.Kind(), err)
	}
	if dec.Remaining() > 0 {
		return nil, fmt.Errorf("decode %s body: %d trailing bytes", ev.Kind(), dec.Remaining())
	}
	return ev, nil
}

// EncodeEvent produces the discriminator-prefixed Borsh payload for an event,
// the exact byte shape the on-chain framework emits.
func EncodeEvent(ev Event) ([]byte, error) {
	disc := AnchorDiscriminator("event", string(ev.Kind()))

	var buf bytes.Buffer
	buf.Write(disc[:])
	if err := bin.NewBorshEncoder(&buf).Encode(ev); err != nil {
		return nil, fmt.Errorf("encode %s body: %w", ev.Kind(), err)
	}
	return buf.Bytes(), nil
}
