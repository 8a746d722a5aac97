package txbuilder

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// Ed25519ProgramID is the chain's built-in signature-verification program.
var Ed25519ProgramID = solana.MustPublicKeyFromBase58("Ed25519SigVerify111111111111111111111111111")

// The verification program's single-signature layout: a two-byte header,
// seven u16 offset fields, then pubkey, signature and message placed at
// fixed offsets inside this same instruction's data.
const (
	ed25519HeaderSize = 2
	ed25519OffsetsLen = 14
	pubkeyOffset      = ed25519HeaderSize + ed25519OffsetsLen // 16
	signatureOffset   = pubkeyOffset + 32                     // 48
	messageOffset     = signatureOffset + 64                  // 112

	// instructionIndexCurrent makes the offsets refer to this instruction.
	instructionIndexCurrent = uint16(0xFFFF)
)

// newEd25519Instruction builds the pre-instruction that makes the runtime
// verify signature over message against pubkey before the program runs.
func newEd25519Instruction(pubkey solana.PublicKey, message []byte, signature [64]byte) solana.Instruction {
	data := make([]byte, messageOffset+len(message))

	data[0] = 1 // number of signatures
	data[1] = 0 // padding

	binary.LittleEndian.PutUint16(data[2:4], signatureOffset)
	binary.LittleEndian.PutUint16(data[4:6], instructionIndexCurrent)
	binary.LittleEndian.PutUint16(data[6:8], pubkeyOffset)
	binary.LittleEndian.PutUint16(data[8:10], instructionIndexCurrent)
	binary.LittleEndian.PutUint16(data[10:12], messageOffset)
	binary.LittleEndian.PutUint16(data[12:14], uint16(len(message)))
	binary.LittleEndian.PutUint16(data[14:16], instructionIndexCurrent)

	copy(data[pubkeyOffset:], pubkey.Bytes())
	copy(data[signatureOffset:], signature[:])
	copy(data[messageOffset:], message)

	return solana.NewInstruction(Ed25519ProgramID, solana.AccountMetaSlice{}, data)
}
