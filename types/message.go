package types

import "encoding/binary"

// OracleMessage is the triple the oracle signs to authorize one priced
// command. The wire form is byte-exact: any deviation fails on-chain
// signature verification.
type OracleMessage struct {
	CommandID uint16
	Price     uint64
	Timestamp int64
}

// Bytes renders the 18-byte little-endian wire form:
// u16 command_id | u64 price | i64 timestamp.
func (m OracleMessage) Bytes() []byte {
	out := make([]byte, OracleMessageSize)
	binary.LittleEndian.PutUint16(out[0:2], m.CommandID)
	binary.LittleEndian.PutUint64(out[2:10], m.Price)
	binary.LittleEndian.PutUint64(out[10:18], uint64(m.Timestamp))
	return out
}
