package types

import "github.com/gagliardetto/solana-go"

// Instruction names as the on-chain program declares them; the instruction
// discriminator is AnchorDiscriminator("global", name).
const (
	IxAdminRegisterProfile = "admin_register_profile"
	IxAdminUpdateConfig    = "admin_update_config"
	IxAdminWithdraw        = "admin_withdraw"
	IxAdminBanUser         = "admin_ban_user"
	IxAdminUnbanUser       = "admin_unban_user"
	IxAdminDispatchCommand = "admin_dispatch_command"
	IxAdminCloseProfile    = "admin_close_profile"
	IxUserCreateProfile    = "user_create_profile"
	IxUserDeposit          = "user_deposit"
	IxUserWithdraw         = "user_withdraw"
	IxUserUpdateCommKey    = "user_update_comm_key"
	IxUserRequestUnban     = "user_request_unban"
	IxUserDispatchCommand  = "user_dispatch_command"
	IxUserCloseProfile     = "user_close_profile"
	IxLogAction            = "log_action"
)

// Argument layouts, Borsh-encoded after the instruction discriminator.
// Field order is the wire order.

type AdminRegisterProfileArgs struct {
	OracleAuthority solana.PublicKey
	CommKey         solana.PublicKey
	UnbanFee        uint64
}

type AdminUpdateConfigArgs struct {
	OracleAuthority solana.PublicKey
	CommKey         solana.PublicKey
	UnbanFee        uint64
}

type AdminWithdrawArgs struct {
	Amount uint64
}

type AdminDispatchCommandArgs struct {
	CommandID uint16
	Payload   []byte
}

type UserCreateProfileArgs struct {
	CommKey solana.PublicKey
}

type UserDepositArgs struct {
	Amount uint64
}

type UserWithdrawArgs struct {
	Amount uint64
}

type UserUpdateCommKeyArgs struct {
	CommKey solana.PublicKey
}

type UserDispatchCommandArgs struct {
	CommandID uint16
	Price     uint64
	Timestamp int64
	Payload   []byte
}

type LogActionArgs struct {
	ActionID uint16
	Payload  []byte
}
