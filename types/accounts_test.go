package types

import (
	"testing"
)

func TestAdminProfileRoundTrip(t *testing.T) {
	t.Parallel()

	p := &AdminProfile{
		Authority:       pk(1),
		OracleAuthority: pk(2),
		CommKey:         pk(3),
		Balance:         7_000_000,
		UnbanFee:        5_000,
		CreatedAt:       1680000000,
	}

	raw, err := EncodeAdminProfile(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	back, err := DecodeAdminProfile(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *back != *p {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestUserProfileRoundTrip(t *testing.T) {
	t.Parallel()

	p := &UserProfile{
		Authority:      pk(4),
		AdminProfile:   pk(5),
		CommKey:        pk(6),
		DepositBalance: 123,
		Banned:         true,
		UnbanRequested: true,
		CreatedAt:      -1,
	}

	raw, err := EncodeUserProfile(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	back, err := DecodeUserProfile(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *back != *p {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestDecodeAccountRejectsWrongKind(t *testing.T) {
	t.Parallel()

	raw, err := EncodeAdminProfile(&AdminProfile{Authority: pk(1)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if _, err := DecodeUserProfile(raw); err == nil {
		t.Fatal("admin bytes must not decode as a user profile")
	}
	if _, err := DecodeAdminProfile([]byte{1, 2, 3}); err == nil {
		t.Fatal("short data must error")
	}
}
