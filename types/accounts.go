package types

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// Account data is discriminator-prefixed Borsh, like events.

func accountDisc(name string) [8]byte { return AnchorDiscriminator("account", name) }

// DecodeAdminProfile parses raw admin profile account data.
func DecodeAdminProfile(data []byte) (*AdminProfile, error) {
	var p AdminProfile
	if err := decodeAccount("AdminProfile", data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeUserProfile parses raw user profile account data.
func DecodeUserProfile(data []byte) (*UserProfile, error) {
	var p UserProfile
	if err := decodeAccount("UserProfile", data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func decodeAccount(name string, data []byte, into interface{}) error {
	disc := accountDisc(name)
	if len(data) < 8 || !bytes.Equal(data[:8], disc[:]) {
		return fmt.Errorf("account data is not a %s", name)
	}
	dec := bin.NewBorshDecoder(data[8:])
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// EncodeAdminProfile renders account bytes in the on-chain layout.
func EncodeAdminProfile(p *AdminProfile) ([]byte, error) {
	return encodeAccount("AdminProfile", p)
}

// EncodeUserProfile renders account bytes in the on-chain layout.
func EncodeUserProfile(p *UserProfile) ([]byte, error) {
	return encodeAccount("UserProfile", p)
}

func encodeAccount(name string, v interface{}) ([]byte, error) {
	disc := accountDisc(name)
	var buf bytes.Buffer
	buf.Write(disc[:])
	if err := bin.NewBorshEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
