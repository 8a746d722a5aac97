package types

import (
	"bytes"
	"testing"

	"github.com/gagliardetto/solana-go"
)

func pk(n byte) solana.PublicKey {
	var k solana.PublicKey
	for i := range k {
		k[i] = n
	}
	return k
}

func TestEventRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []Event{
		&AdminProfileCreated{Admin: pk(1), Authority: pk(2), Oracle: pk(3), CommKey: pk(4), UnbanFee: 5000, Ts: 42},
		&UserBanned{User: pk(5), Admin: pk(6), Ts: -7},
		&UserCommandDispatched{User: pk(7), Admin: pk(8), CommandID: 42, Price: 50000, Payload: []byte{1, 2, 3}, Ts: 1680000000},
		&UserDeposited{User: pk(9), Amount: 1, Ts: 0},
		&ActionLogged{Actor: pk(10), ActionID: 9, Payload: nil, Ts: 3},
	}

	for _, ev := range cases {
		raw, err := EncodeEvent(ev)
		if err != nil {
			t.Fatalf("%s: encode: %v", ev.Kind(), err)
		}

		back, err := DecodeEvent(raw)
		if err != nil {
			t.Fatalf("%s: decode: %v", ev.Kind(), err)
		}
		if back == nil {
			t.Fatalf("%s: decoded as unknown", ev.Kind())
		}
		if back.Kind() != ev.Kind() {
			t.Fatalf("kind mismatch: %s != %s", back.Kind(), ev.Kind())
		}
		if back.Primary() != ev.Primary() {
			t.Fatalf("%s: primary mismatch", ev.Kind())
		}
		if back.Timestamp() != ev.Timestamp() {
			t.Fatalf("%s: timestamp mismatch", ev.Kind())
		}
	}
}

func TestDecodeEventUnknownDiscriminator(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte{0xAB}, 24)
	ev, err := DecodeEvent(payload)
	if err != nil {
		t.Fatalf("unknown discriminator must not error: %v", err)
	}
	if ev != nil {
		t.Fatalf("unknown discriminator decoded to %T", ev)
	}
}

func TestDecodeEventMalformedBody(t *testing.T) {
	t.Parallel()

	disc := AnchorDiscriminator("event", string(KindUserDeposited))
	payload := append(disc[:], 0x01) // far too short for the body

	if _, err := DecodeEvent(payload); err == nil {
		t.Fatal("malformed body must error")
	}
}

func TestDecodeEventTrailingBytes(t *testing.T) {
	t.Parallel()

	raw, err := EncodeEvent(&UserDeposited{User: pk(1), Amount: 2, Ts: 3})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw = append(raw, 0x00)

	if _, err := DecodeEvent(raw); err == nil {
		t.Fatal("trailing bytes must error")
	}
}

func TestDecodeEventShortPayload(t *testing.T) {
	t.Parallel()

	if _, err := DecodeEvent([]byte{1, 2, 3}); err == nil {
		t.Fatal("short payload must error")
	}
}

func TestConcernedOrdering(t *testing.T) {
	t.Parallel()

	ev := &UserBanned{User: pk(1), Admin: pk(2)}
	concerned := ev.Concerned()
	if len(concerned) != 2 || concerned[0] != ev.User || concerned[1] != ev.Admin {
		t.Fatalf("primary must lead the concerned set: %v", concerned)
	}
}

func TestProfileAddressesDeterministic(t *testing.T) {
	t.Parallel()

	program := pk(90)
	authority := pk(91)

	a1, bump1, err := AdminProfileAddress(program, authority)
	if err != nil {
		t.Fatalf("derive admin: %v", err)
	}
	a2, bump2, err := AdminProfileAddress(program, authority)
	if err != nil {
		t.Fatalf("derive admin: %v", err)
	}
	if a1 != a2 || bump1 != bump2 {
		t.Fatal("admin PDA derivation is not deterministic")
	}

	u1, _, err := UserProfileAddress(program, pk(92), a1)
	if err != nil {
		t.Fatalf("derive user: %v", err)
	}
	u2, _, err := UserProfileAddress(program, pk(93), a1)
	if err != nil {
		t.Fatalf("derive user: %v", err)
	}
	if u1 == u2 {
		t.Fatal("different authorities must derive different user PDAs")
	}
}
