package txbuilder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/w3b2/w3b2-solana-go/types"
)

var testProgram = solana.MustPublicKeyFromBase58("BPFLoaderUpgradeab1e11111111111111111111111")

func pk(n byte) solana.PublicKey {
	var k solana.PublicKey
	for i := range k {
		k[i] = n
	}
	return k
}

func sig64(n byte) [64]byte {
	var s [64]byte
	for i := range s {
		s[i] = n
	}
	return s
}

// resolved returns the program key and raw data of a compiled instruction.
func resolved(t *testing.T, tx *solana.Transaction, idx int) (solana.PublicKey, []byte) {
	t.Helper()
	if idx >= len(tx.Message.Instructions) {
		t.Fatalf("instruction %d out of range (%d)", idx, len(tx.Message.Instructions))
	}
	ci := tx.Message.Instructions[idx]
	return tx.Message.AccountKeys[ci.ProgramIDIndex], ci.Data
}

// The paid command produces exactly two instructions: the verification
// pre-instruction referencing (oracle key, 18-byte message, signature), then
// the program instruction carrying the same triple.
func TestUserDispatchCommandShape(t *testing.T) {
	t.Parallel()

	b := New(testProgram)
	authority, admin, oracle := pk(1), pk(2), pk(3)
	oracleSig := sig64(0xAA)

	tx, err := b.UserDispatchCommand(authority, admin, oracle, oracleSig, 42, 50000, 1680000000, []byte("req"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if len(tx.Message.Instructions) != 2 {
		t.Fatalf("expected 2 instructions, got %d", len(tx.Message.Instructions))
	}

	preProgram, preData := resolved(t, tx, 0)
	if preProgram != Ed25519ProgramID {
		t.Fatalf("pre-instruction program %s, want ed25519 verifier", preProgram)
	}

	wantMsg := types.OracleMessage{CommandID: 42, Price: 50000, Timestamp: 1680000000}.Bytes()
	if len(preData) != messageOffset+len(wantMsg) {
		t.Fatalf("pre-instruction data length %d", len(preData))
	}
	if preData[0] != 1 || preData[1] != 0 {
		t.Fatalf("bad header: % x", preData[:2])
	}
	if got := binary.LittleEndian.Uint16(preData[2:4]); got != signatureOffset {
		t.Fatalf("signature offset %d", got)
	}
	if got := binary.LittleEndian.Uint16(preData[6:8]); got != pubkeyOffset {
		t.Fatalf("pubkey offset %d", got)
	}
	if got := binary.LittleEndian.Uint16(preData[10:12]); got != messageOffset {
		t.Fatalf("message offset %d", got)
	}
	if got := binary.LittleEndian.Uint16(preData[12:14]); got != uint16(len(wantMsg)) {
		t.Fatalf("message size %d", got)
	}
	if !bytes.Equal(preData[pubkeyOffset:pubkeyOffset+32], oracle.Bytes()) {
		t.Fatal("oracle key not embedded at its offset")
	}
	if !bytes.Equal(preData[signatureOffset:signatureOffset+64], oracleSig[:]) {
		t.Fatal("signature not embedded at its offset")
	}
	if !bytes.Equal(preData[messageOffset:], wantMsg) {
		t.Fatalf("embedded message % x, want % x", preData[messageOffset:], wantMsg)
	}

	// Program instruction: same triple after the discriminator.
	mainProgram, mainData := resolved(t, tx, 1)
	if mainProgram != testProgram {
		t.Fatalf("main instruction program %s", mainProgram)
	}
	disc := types.AnchorDiscriminator("global", types.IxUserDispatchCommand)
	if !bytes.Equal(mainData[:8], disc[:]) {
		t.Fatal("wrong instruction discriminator")
	}
	body := mainData[8:]
	if got := binary.LittleEndian.Uint16(body[0:2]); got != 42 {
		t.Fatalf("command_id %d", got)
	}
	if got := binary.LittleEndian.Uint64(body[2:10]); got != 50000 {
		t.Fatalf("price %d", got)
	}
	if got := int64(binary.LittleEndian.Uint64(body[10:18])); got != 1680000000 {
		t.Fatalf("timestamp %d", got)
	}
	if got := binary.LittleEndian.Uint32(body[18:22]); got != 3 {
		t.Fatalf("payload length %d", got)
	}
	if !bytes.Equal(body[22:25], []byte("req")) {
		t.Fatal("payload bytes mismatch")
	}
}

// The unsigned transaction leaves the blockhash zero and carries no
// signatures; signing is the caller's job.
func TestUnsignedTransactionHasNoSignatures(t *testing.T) {
	t.Parallel()

	b := New(testProgram)
	tx, err := b.UserDeposit(pk(1), pk(2), 100)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	for _, s := range tx.Signatures {
		if !s.IsZero() {
			t.Fatal("builder must not produce signatures")
		}
	}
	if tx.Message.RecentBlockhash != (solana.Hash{}) {
		t.Fatal("builder must not set a blockhash")
	}
}

// Feeding garbage signature material changes only the pre-instruction's
// embedded bytes; the program instruction is byte-identical. The builder is
// observably pure with respect to secrets.
func TestBuilderIgnoresSignatureValidity(t *testing.T) {
	t.Parallel()

	b := New(testProgram)

	tx1, err := b.UserDispatchCommand(pk(1), pk(2), pk(3), sig64(0x00), 7, 9, 11, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	tx2, err := b.UserDispatchCommand(pk(1), pk(2), pk(3), sig64(0xFF), 7, 9, 11, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	_, main1 := resolved(t, tx1, 1)
	_, main2 := resolved(t, tx2, 1)
	if !bytes.Equal(main1, main2) {
		t.Fatal("program instruction must not depend on the signature bytes")
	}

	// Deterministic: same inputs, same bytes.
	tx3, err := b.UserDispatchCommand(pk(1), pk(2), pk(3), sig64(0x00), 7, 9, 11, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	raw1, err := tx1.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	raw3, err := tx3.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(raw1, raw3) {
		t.Fatal("builder is not deterministic")
	}
}

func TestAccountMetaContracts(t *testing.T) {
	t.Parallel()

	b := New(testProgram)
	authority := pk(1)

	tx, err := b.AdminRegisterProfile(authority, pk(2), pk(3), 500)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	adminPDA, _, err := types.AdminProfileAddress(testProgram, authority)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	meta := tx.Message.AccountKeys
	found := false
	for _, k := range meta {
		if k == adminPDA {
			found = true
		}
	}
	if !found {
		t.Fatal("derived admin PDA missing from account keys")
	}

	// The authority signs and pays.
	if meta[0] != authority {
		t.Fatalf("fee payer %s, want authority", meta[0])
	}
	if tx.Message.Header.NumRequiredSignatures != 1 {
		t.Fatalf("required signatures %d, want 1", tx.Message.Header.NumRequiredSignatures)
	}
}

func TestInputValidation(t *testing.T) {
	t.Parallel()

	b := New(testProgram)
	big := make([]byte, types.MaxPayloadSize+1)

	cases := []struct {
		name string
		call func() error
		want error
	}{
		{"zero amount deposit", func() error {
			_, err := b.UserDeposit(pk(1), pk(2), 0)
			return err
		}, ErrInvalidAmount},
		{"zero amount withdraw", func() error {
			_, err := b.AdminWithdraw(pk(1), pk(2), 0)
			return err
		}, ErrInvalidAmount},
		{"zero price command", func() error {
			_, err := b.UserDispatchCommand(pk(1), pk(2), pk(3), sig64(1), 1, 0, 1, nil)
			return err
		}, ErrInvalidAmount},
		{"zero authority", func() error {
			_, err := b.UserDeposit(solana.PublicKey{}, pk(2), 5)
			return err
		}, ErrInvalidKey},
		{"zero oracle key", func() error {
			_, err := b.UserDispatchCommand(pk(1), pk(2), solana.PublicKey{}, sig64(1), 1, 2, 3, nil)
			return err
		}, ErrInvalidKey},
		{"oversized user payload", func() error {
			_, err := b.UserDispatchCommand(pk(1), pk(2), pk(3), sig64(1), 1, 2, 3, big)
			return err
		}, ErrPayloadTooLarge},
		{"oversized admin payload", func() error {
			_, err := b.AdminDispatchCommand(pk(1), pk(2), 1, big)
			return err
		}, ErrPayloadTooLarge},
		{"oversized log payload", func() error {
			_, err := b.LogAction(pk(1), pk(2), 1, big)
			return err
		}, ErrPayloadTooLarge},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

// Max-size payload is accepted: the ceiling is inclusive.
func TestPayloadCeilingInclusive(t *testing.T) {
	t.Parallel()

	b := New(testProgram)
	payload := make([]byte, types.MaxPayloadSize)
	if _, err := b.AdminDispatchCommand(pk(1), pk(2), 1, payload); err != nil {
		t.Fatalf("payload at ceiling rejected: %v", err)
	}
}

// The no-argument user_request_unban encodes as its bare discriminator, and
// the argument-carrying admin_withdraw and admin_register_profile decode back
// to the inputs via an independent byte-level parse.
func TestInstructionEncodingRoundTrip(t *testing.T) {
	t.Parallel()

	b := New(testProgram)

	tx, err := b.AdminWithdraw(pk(1), pk(2), 12345)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	_, data := resolved(t, tx, 0)
	disc := types.AnchorDiscriminator("global", types.IxAdminWithdraw)
	if !bytes.Equal(data[:8], disc[:]) {
		t.Fatal("wrong discriminator")
	}
	if got := binary.LittleEndian.Uint64(data[8:16]); got != 12345 {
		t.Fatalf("amount %d", got)
	}
	if len(data) != 16 {
		t.Fatalf("unexpected trailing bytes: %d", len(data))
	}

	tx, err = b.UserRequestUnban(pk(1), pk(2))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	_, data = resolved(t, tx, 0)
	disc = types.AnchorDiscriminator("global", types.IxUserRequestUnban)
	if !bytes.Equal(data, disc[:]) {
		t.Fatal("no-arg instruction must be the bare discriminator")
	}

	tx, err = b.AdminRegisterProfile(pk(1), pk(7), pk(8), 999)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	_, data = resolved(t, tx, 0)
	body := data[8:]
	if !bytes.Equal(body[0:32], pk(7).Bytes()) {
		t.Fatal("oracle key mismatch")
	}
	if !bytes.Equal(body[32:64], pk(8).Bytes()) {
		t.Fatal("comm key mismatch")
	}
	if got := binary.LittleEndian.Uint64(body[64:72]); got != 999 {
		t.Fatalf("unban fee %d", got)
	}
}
