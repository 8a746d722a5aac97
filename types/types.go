// Package types holds the on-chain data model the connector observes and
// targets: profile account layouts, event variants, instruction argument
// layouts and the oracle wire message.
package types

import (
	"crypto/sha256"
	"time"

	"github.com/gagliardetto/solana-go"
)

const (
	// AdminSeed and UserSeed are the PDA seed prefixes of the two profile kinds.
	AdminSeed = "admin"
	UserSeed  = "user"

	// MaxPayloadSize is the on-chain ceiling for opaque command payloads.
	MaxPayloadSize = 1024

	// OracleMessageSize is the byte length of the message the oracle signs.
	OracleMessageSize = 18

	HealthCheckInterval = 30 * time.Second
)

// ProfileKind distinguishes the two PDA profile kinds a subscription targets.
type ProfileKind uint8

const (
	ProfileAdmin ProfileKind = iota
	ProfileUser
)

func (k ProfileKind) String() string {
	switch k {
	case ProfileAdmin:
		return "admin"
	case ProfileUser:
		return "user"
	default:
		return "unknown"
	}
}

// AdminProfile mirrors the on-chain admin account. The authority is the sole
// mutator; the oracle authority is the trusted signer for priced commands.
type AdminProfile struct {
	Authority       solana.PublicKey
	OracleAuthority solana.PublicKey
	CommKey         solana.PublicKey
	Balance         uint64
	UnbanFee        uint64
	CreatedAt       int64
}

// UserProfile mirrors the on-chain user account. AdminProfile never changes
// after creation.
type UserProfile struct {
	Authority      solana.PublicKey
	AdminProfile   solana.PublicKey
	CommKey        solana.PublicKey
	DepositBalance uint64
	Banned         bool
	UnbanRequested bool
	CreatedAt      int64
}

// AdminProfileAddress derives the admin profile PDA for an authority.
func AdminProfileAddress(programID, authority solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte(AdminSeed), authority.Bytes()},
		programID,
	)
}

// UserProfileAddress derives the user profile PDA for an authority under the
// given admin profile.
func UserProfileAddress(programID, authority, adminProfile solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte(UserSeed), authority.Bytes(), adminProfile.Bytes()},
		programID,
	)
}

// AnchorDiscriminator computes the 8-byte discriminator the on-chain
// framework prefixes to accounts, instructions and emitted events.
// The namespace is "global" for instructions, "event" for events and
// "account" for account data.
func AnchorDiscriminator(namespace, name string) [8]byte {
	h := sha256.Sum256([]byte(namespace + ":" + name))
	var d [8]byte
	copy(d[:], h[:8])
	return d
}
