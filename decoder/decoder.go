// Package decoder turns a transaction's structured log output into the typed
// event variants of the on-chain program. It understands the framework's
// "Program data:" frames (base64, discriminator-prefixed Borsh) and keeps
// the source ordering of events within the transaction.
package decoder

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/w3b2/w3b2-solana-go/types"
)

const (
	invokeMarker  = " invoke ["
	successSuffix = " success"
	failedMarker  = " failed: "
	dataPrefix    = "Program data: "
	logPrefix     = "Program log: "
)

// Decoded is one event with its position among the transaction's events.
type Decoded struct {
	Index int
	Event types.Event
}

// PoisonError marks a transaction whose logs cannot be fully decoded. The
// worker does not advance past it.
type PoisonError struct {
	Line int
	Err  error
}

func (e *PoisonError) Error() string {
	return fmt.Sprintf("poisoned transaction: log line %d: %v", e.Line, e.Err)
}

func (e *PoisonError) Unwrap() error { return e.Err }

// Decoder parses log lines for one program id.
type Decoder struct {
	programID solana.PublicKey
	invoke    string
	fail      string
	success   string
}

func New(programID solana.PublicKey) *Decoder {
	id := programID.String()
	return &Decoder{
		programID: programID,
		invoke:    "Program " + id + invokeMarker,
		fail:      "Program " + id + failedMarker,
		success:   "Program " + id + successSuffix,
	}
}

// Decode walks the raw log lines of one transaction. Data frames emitted
// while the program is on the invocation stack are decoded; frames of other
// programs are ignored. Unknown discriminators are skipped without error; a
// recognized discriminator with a malformed body poisons the transaction.
func (d *Decoder) Decode(logs []string) ([]Decoded, error) {
	var out []Decoded
	depth := 0
	idx := 0

	for i, line := range logs {
		switch {
		case strings.HasPrefix(line, d.invoke):
			depth++
		case line == d.success, strings.HasPrefix(line, d.fail):
			if depth > 0 {
				depth--
			}
		case depth > 0 && strings.HasPrefix(line, dataPrefix):
			payload, err := base64.StdEncoding.DecodeString(line[len(dataPrefix):])
			if err != nil {
				return nil, &PoisonError{Line: i, Err: fmt.Errorf("base64: %w", err)}
			}
			ev, err := types.DecodeEvent(payload)
			if err != nil {
				return nil, &PoisonError{Line: i, Err: err}
			}
			if ev == nil {
				// Outside the sealed event set; skip, do not fail the tx.
				continue
			}
			out = append(out, Decoded{Index: idx, Event: ev})
			idx++
		}
	}
	return out, nil
}

// ConcernedBy filters decoded events down to those mentioning the PDA.
func ConcernedBy(events []Decoded, pda solana.PublicKey) []Decoded {
	var out []Decoded
	for _, de := range events {
		for _, p := range de.Event.Concerned() {
			if p.Equals(pda) {
				out = append(out, de)
				break
			}
		}
	}
	return out
}
