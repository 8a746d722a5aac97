// Package txbuilder constructs unsigned transactions for every instruction
// of the on-chain program. It validates inputs, derives the profile PDAs,
// assembles account metas and Borsh-encodes arguments. It never signs,
// never broadcasts and never touches secret keys: the caller signs
// externally and submits through the submitter.
package txbuilder

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/w3b2/w3b2-solana-go/types"
)

// Builder prepares unsigned transactions against one program deployment.
type Builder struct {
	programID solana.PublicKey
}

func New(programID solana.PublicKey) *Builder {
	return &Builder{programID: programID}
}

func (b *Builder) ProgramID() solana.PublicKey { return b.programID }

// AdminRegisterProfile creates the admin profile PDA for authority.
func (b *Builder) AdminRegisterProfile(authority, oracleAuthority, commKey solana.PublicKey, unbanFee uint64) (*solana.Transaction, error) {
	if err := requireKeys(kv{"authority", authority}, kv{"oracle_authority", oracleAuthority}, kv{"comm_key", commKey}); err != nil {
		return nil, err
	}
	adminPDA, _, err := types.AdminProfileAddress(b.programID, authority)
	if err != nil {
		return nil, invalidKey("authority")
	}

	data, err := encodeIx(types.IxAdminRegisterProfile, types.AdminRegisterProfileArgs{
		OracleAuthority: oracleAuthority,
		CommKey:         commKey,
		UnbanFee:        unbanFee,
	})
	if err != nil {
		return nil, err
	}

	ix := solana.NewInstruction(b.programID, solana.AccountMetaSlice{
		solana.Meta(adminPDA).WRITE(),
		solana.Meta(authority).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
	}, data)
	return b.wrap(authority, ix)
}

// AdminUpdateConfig replaces the admin profile's oracle key, communication
// key and unban fee.
func (b *Builder) AdminUpdateConfig(authority, oracleAuthority, commKey solana.PublicKey, unbanFee uint64) (*solana.Transaction, error) {
	if err := requireKeys(kv{"authority", authority}, kv{"oracle_authority", oracleAuthority}, kv{"comm_key", commKey}); err != nil {
		return nil, err
	}
	adminPDA, _, err := types.AdminProfileAddress(b.programID, authority)
	if err != nil {
		return nil, invalidKey("authority")
	}

	data, err := encodeIx(types.IxAdminUpdateConfig, types.AdminUpdateConfigArgs{
		OracleAuthority: oracleAuthority,
		CommKey:         commKey,
		UnbanFee:        unbanFee,
	})
	if err != nil {
		return nil, err
	}

	ix := solana.NewInstruction(b.programID, solana.AccountMetaSlice{
		solana.Meta(adminPDA).WRITE(),
		solana.Meta(authority).SIGNER(),
	}, data)
	return b.wrap(authority, ix)
}

// AdminWithdraw moves amount lamports from the admin profile's internal
// balance to destination.
func (b *Builder) AdminWithdraw(authority, destination solana.PublicKey, amount uint64) (*solana.Transaction, error) {
	if err := requireKeys(kv{"authority", authority}, kv{"destination", destination}); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	adminPDA, _, err := types.AdminProfileAddress(b.programID, authority)
	if err != nil {
		return nil, invalidKey("authority")
	}

	data, err := encodeIx(types.IxAdminWithdraw, types.AdminWithdrawArgs{Amount: amount})
	if err != nil {
		return nil, err
	}

	ix := solana.NewInstruction(b.programID, solana.AccountMetaSlice{
		solana.Meta(adminPDA).WRITE(),
		solana.Meta(authority).SIGNER(),
		solana.Meta(destination).WRITE(),
	}, data)
	return b.wrap(authority, ix)
}

// AdminBanUser sets the banned flag on the user's profile under this admin.
func (b *Builder) AdminBanUser(authority, userAuthority solana.PublicKey) (*solana.Transaction, error) {
	return b.adminUserFlagTx(types.IxAdminBanUser, authority, userAuthority)
}

// AdminUnbanUser clears the banned flag on the user's profile.
func (b *Builder) AdminUnbanUser(authority, userAuthority solana.PublicKey) (*solana.Transaction, error) {
	return b.adminUserFlagTx(types.IxAdminUnbanUser, authority, userAuthority)
}

func (b *Builder) adminUserFlagTx(name string, authority, userAuthority solana.PublicKey) (*solana.Transaction, error) {
	if err := requireKeys(kv{"authority", authority}, kv{"user_authority", userAuthority}); err != nil {
		return nil, err
	}
	adminPDA, _, err := types.AdminProfileAddress(b.programID, authority)
	if err != nil {
		return nil, invalidKey("authority")
	}
	userPDA, _, err := types.UserProfileAddress(b.programID, userAuthority, adminPDA)
	if err != nil {
		return nil, invalidKey("user_authority")
	}

	data, err := encodeIx(name, nil)
	if err != nil {
		return nil, err
	}

	ix := solana.NewInstruction(b.programID, solana.AccountMetaSlice{
		solana.Meta(adminPDA),
		solana.Meta(userPDA).WRITE(),
		solana.Meta(authority).SIGNER(),
	}, data)
	return b.wrap(authority, ix)
}

// AdminDispatchCommand sends a command with an opaque payload to a user.
func (b *Builder) AdminDispatchCommand(authority, userAuthority solana.PublicKey, commandID uint16, payload []byte) (*solana.Transaction, error) {
	if err := requireKeys(kv{"authority", authority}, kv{"user_authority", userAuthority}); err != nil {
		return nil, err
	}
	if len(payload) > types.MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}
	adminPDA, _, err := types.AdminProfileAddress(b.programID, authority)
	if err != nil {
		return nil, invalidKey("authority")
	}
	userPDA, _, err := types.UserProfileAddress(b.programID, userAuthority, adminPDA)
	if err != nil {
		return nil, invalidKey("user_authority")
	}

	data, err := encodeIx(types.IxAdminDispatchCommand, types.AdminDispatchCommandArgs{
		CommandID: commandID,
		Payload:   payload,
	})
	if err != nil {
		return nil, err
	}

	ix := solana.NewInstruction(b.programID, solana.AccountMetaSlice{
		solana.Meta(adminPDA).WRITE(),
		solana.Meta(userPDA),
		solana.Meta(authority).SIGNER(),
	}, data)
	return b.wrap(authority, ix)
}

// AdminCloseProfile closes the admin profile, refunding rent to authority.
func (b *Builder) AdminCloseProfile(authority solana.PublicKey) (*solana.Transaction, error) {
	if err := requireKeys(kv{"authority", authority}); err != nil {
		return nil, err
	}
	adminPDA, _, err := types.AdminProfileAddress(b.programID, authority)
	if err != nil {
		return nil, invalidKey("authority")
	}

	data, err := encodeIx(types.IxAdminCloseProfile, nil)
	if err != nil {
		return nil, err
	}

	ix := solana.NewInstruction(b.programID, solana.AccountMetaSlice{
		solana.Meta(adminPDA).WRITE(),
		solana.Meta(authority).WRITE().SIGNER(),
	}, data)
	return b.wrap(authority, ix)
}

// UserCreateProfile creates the user profile PDA under adminProfile. The
// linked admin is fixed for the profile's lifetime.
func (b *Builder) UserCreateProfile(authority, adminProfile, commKey solana.PublicKey) (*solana.Transaction, error) {
	if err := requireKeys(kv{"authority", authority}, kv{"admin_profile", adminProfile}, kv{"comm_key", commKey}); err != nil {
		return nil, err
	}
	userPDA, _, err := types.UserProfileAddress(b.programID, authority, adminProfile)
	if err != nil {
		return nil, invalidKey("authority")
	}

	data, err := encodeIx(types.IxUserCreateProfile, types.UserCreateProfileArgs{CommKey: commKey})
	if err != nil {
		return nil, err
	}

	ix := solana.NewInstruction(b.programID, solana.AccountMetaSlice{
		solana.Meta(userPDA).WRITE(),
		solana.Meta(adminProfile),
		solana.Meta(authority).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
	}, data)
	return b.wrap(authority, ix)
}

// UserDeposit moves amount lamports from authority into the profile's
// deposit balance.
func (b *Builder) UserDeposit(authority, adminProfile solana.PublicKey, amount uint64) (*solana.Transaction, error) {
	if err := requireKeys(kv{"authority", authority}, kv{"admin_profile", adminProfile}); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	userPDA, _, err := types.UserProfileAddress(b.programID, authority, adminProfile)
	if err != nil {
		return nil, invalidKey("authority")
	}

	data, err := encodeIx(types.IxUserDeposit, types.UserDepositArgs{Amount: amount})
	if err != nil {
		return nil, err
	}

	ix := solana.NewInstruction(b.programID, solana.AccountMetaSlice{
		solana.Meta(userPDA).WRITE(),
		solana.Meta(authority).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
	}, data)
	return b.wrap(authority, ix)
}

// UserWithdraw moves amount lamports from the deposit balance to
// destination. Rejected on-chain while the user is banned.
func (b *Builder) UserWithdraw(authority, adminProfile, destination solana.PublicKey, amount uint64) (*solana.Transaction, error) {
	if err := requireKeys(kv{"authority", authority}, kv{"admin_profile", adminProfile}, kv{"destination", destination}); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	userPDA, _, err := types.UserProfileAddress(b.programID, authority, adminProfile)
	if err != nil {
		return nil, invalidKey("authority")
	}

	data, err := encodeIx(types.IxUserWithdraw, types.UserWithdrawArgs{Amount: amount})
	if err != nil {
		return nil, err
	}

	ix := solana.NewInstruction(b.programID, solana.AccountMetaSlice{
		solana.Meta(userPDA).WRITE(),
		solana.Meta(authority).SIGNER(),
		solana.Meta(destination).WRITE(),
	}, data)
	return b.wrap(authority, ix)
}

// UserUpdateCommKey replaces the profile's communication key.
func (b *Builder) UserUpdateCommKey(authority, adminProfile, commKey solana.PublicKey) (*solana.Transaction, error) {
	if err := requireKeys(kv{"authority", authority}, kv{"admin_profile", adminProfile}, kv{"comm_key", commKey}); err != nil {
		return nil, err
	}
	userPDA, _, err := types.UserProfileAddress(b.programID, authority, adminProfile)
	if err != nil {
		return nil, invalidKey("authority")
	}

	data, err := encodeIx(types.IxUserUpdateCommKey, types.UserUpdateCommKeyArgs{CommKey: commKey})
	if err != nil {
		return nil, err
	}

	ix := solana.NewInstruction(b.programID, solana.AccountMetaSlice{
		solana.Meta(userPDA).WRITE(),
		solana.Meta(authority).SIGNER(),
	}, data)
	return b.wrap(authority, ix)
}

// UserRequestUnban pays the admin's unban fee from the deposit balance.
// The banned flag stays set until the admin acts.
func (b *Builder) UserRequestUnban(authority, adminProfile solana.PublicKey) (*solana.Transaction, error) {
	if err := requireKeys(kv{"authority", authority}, kv{"admin_profile", adminProfile}); err != nil {
		return nil, err
	}
	userPDA, _, err := types.UserProfileAddress(b.programID, authority, adminProfile)
	if err != nil {
		return nil, invalidKey("authority")
	}

	data, err := encodeIx(types.IxUserRequestUnban, nil)
	if err != nil {
		return nil, err
	}

	ix := solana.NewInstruction(b.programID, solana.AccountMetaSlice{
		solana.Meta(userPDA).WRITE(),
		solana.Meta(adminProfile).WRITE(),
		solana.Meta(authority).SIGNER(),
	}, data)
	return b.wrap(authority, ix)
}

// UserDispatchCommand is the paid command path. The transaction carries two
// instructions: the signature-verification pre-instruction over the 18-byte
// oracle message, then the program instruction with the same triple.
func (b *Builder) UserDispatchCommand(
	authority, adminProfile, oracleKey solana.PublicKey,
	oracleSignature [64]byte,
	commandID uint16, price uint64, timestamp int64,
	payload []byte,
) (*solana.Transaction, error) {
	if err := requireKeys(kv{"authority", authority}, kv{"admin_profile", adminProfile}, kv{"oracle_key", oracleKey}); err != nil {
		return nil, err
	}
	if price == 0 {
		return nil, ErrInvalidAmount
	}
	if len(payload) > types.MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}
	userPDA, _, err := types.UserProfileAddress(b.programID, authority, adminProfile)
	if err != nil {
		return nil, invalidKey("authority")
	}

	msg := types.OracleMessage{CommandID: commandID, Price: price, Timestamp: timestamp}
	preIx := newEd25519Instruction(oracleKey, msg.Bytes(), oracleSignature)

	data, err := encodeIx(types.IxUserDispatchCommand, types.UserDispatchCommandArgs{
		CommandID: commandID,
		Price:     price,
		Timestamp: timestamp,
		Payload:   payload,
	})
	if err != nil {
		return nil, err
	}

	ix := solana.NewInstruction(b.programID, solana.AccountMetaSlice{
		solana.Meta(userPDA).WRITE(),
		solana.Meta(adminProfile).WRITE(),
		solana.Meta(authority).SIGNER(),
		solana.Meta(solana.SysVarInstructionsPubkey),
	}, data)
	return b.wrap(authority, preIx, ix)
}

// UserCloseProfile closes the user profile, refunding rent and the
// remaining deposit to authority.
func (b *Builder) UserCloseProfile(authority, adminProfile solana.PublicKey) (*solana.Transaction, error) {
	if err := requireKeys(kv{"authority", authority}, kv{"admin_profile", adminProfile}); err != nil {
		return nil, err
	}
	userPDA, _, err := types.UserProfileAddress(b.programID, authority, adminProfile)
	if err != nil {
		return nil, invalidKey("authority")
	}

	data, err := encodeIx(types.IxUserCloseProfile, nil)
	if err != nil {
		return nil, err
	}

	ix := solana.NewInstruction(b.programID, solana.AccountMetaSlice{
		solana.Meta(userPDA).WRITE(),
		solana.Meta(authority).WRITE().SIGNER(),
	}, data)
	return b.wrap(authority, ix)
}

// LogAction records an opaque audit entry against a profile.
func (b *Builder) LogAction(authority, profile solana.PublicKey, actionID uint16, payload []byte) (*solana.Transaction, error) {
	if err := requireKeys(kv{"authority", authority}, kv{"profile", profile}); err != nil {
		return nil, err
	}
	if len(payload) > types.MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}

	data, err := encodeIx(types.IxLogAction, types.LogActionArgs{
		ActionID: actionID,
		Payload:  payload,
	})
	if err != nil {
		return nil, err
	}

	ix := solana.NewInstruction(b.programID, solana.AccountMetaSlice{
		solana.Meta(profile),
		solana.Meta(authority).SIGNER(),
	}, data)
	return b.wrap(authority, ix)
}

// wrap assembles the unsigned transaction: fee payer fixed to the authority,
// blockhash left zero for the external signer to fill.
func (b *Builder) wrap(payer solana.PublicKey, ixs ...solana.Instruction) (*solana.Transaction, error) {
	tx, err := solana.NewTransaction(ixs, solana.Hash{}, solana.TransactionPayer(payer))
	if err != nil {
		return nil, serializationErr("transaction", err)
	}
	return tx, nil
}

type kv struct {
	name string
	key  solana.PublicKey
}

func requireKeys(keys ...kv) error {
	for _, k := range keys {
		if k.key.IsZero() {
			return invalidKey(k.name)
		}
	}
	return nil
}

// encodeIx renders discriminator-prefixed Borsh instruction data.
func encodeIx(name string, args interface{}) ([]byte, error) {
	disc := types.AnchorDiscriminator("global", name)

	var buf bytes.Buffer
	buf.Write(disc[:])
	if args != nil {
		if err := bin.NewBorshEncoder(&buf).Encode(args); err != nil {
			return nil, serializationErr(name, err)
		}
	}
	return buf.Bytes(), nil
}
