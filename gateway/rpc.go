package gateway

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gagliardetto/solana-go"

	"github.com/w3b2/w3b2-solana-go/txbuilder"
	"github.com/w3b2/w3b2-solana-go/types"
)

// JSON-RPC 2.0 envelope.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	codeParse          = -32700
	codeInvalidRequest = -32600
	codeUnknownMethod  = -32601
	codeInvalidParams  = -32602
	codeInternal       = -32603
)

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: codeParse, Message: "parse error"}})
		return
	}

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	result, err := s.dispatch(r, &req)
	if err != nil {
		resp.Error = toRPCError(err)
		s.logger.Debug("rpc call failed", "method", req.Method, "error", err)
	} else {
		resp.Result = result
	}
	writeRPC(w, resp)
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func toRPCError(err error) *rpcError {
	switch {
	case isCode(err, codeUnknownMethod):
		return &rpcError{Code: codeUnknownMethod, Message: err.Error()}
	case isCode(err, codeInvalidParams):
		return &rpcError{Code: codeInvalidParams, Message: err.Error()}
	default:
		return &rpcError{Code: codeInternal, Message: err.Error()}
	}
}

type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func isCode(err error, code int) bool {
	ce, ok := err.(*codedError)
	return ok && ce.code == code
}

func paramsErr(format string, a ...interface{}) error {
	return &codedError{code: codeInvalidParams, err: fmt.Errorf(format, a...)}
}

func (s *Server) dispatch(r *http.Request, req *rpcRequest) (interface{}, error) {
	switch req.Method {
	case "buildAdminRegisterProfile":
		var p struct {
			Authority       string `json:"authority"`
			OracleAuthority string `json:"oracle_authority"`
			CommKey         string `json:"comm_key"`
			UnbanFee        uint64 `json:"unban_fee"`
		}
		if err := parse(req.Params, &p); err != nil {
			return nil, err
		}
		return s.buildResult3(p.Authority, p.OracleAuthority, p.CommKey, func(a, b, c solana.PublicKey) (*solana.Transaction, error) {
			return s.builder.AdminRegisterProfile(a, b, c, p.UnbanFee)
		})

	case "buildAdminUpdateConfig":
		var p struct {
			Authority       string `json:"authority"`
			OracleAuthority string `json:"oracle_authority"`
			CommKey         string `json:"comm_key"`
			UnbanFee        uint64 `json:"unban_fee"`
		}
		if err := parse(req.Params, &p); err != nil {
			return nil, err
		}
		return s.buildResult3(p.Authority, p.OracleAuthority, p.CommKey, func(a, b, c solana.PublicKey) (*solana.Transaction, error) {
			return s.builder.AdminUpdateConfig(a, b, c, p.UnbanFee)
		})

	case "buildAdminWithdraw":
		var p struct {
			Authority   string `json:"authority"`
			Destination string `json:"destination"`
			Amount      uint64 `json:"amount"`
		}
		if err := parse(req.Params, &p); err != nil {
			return nil, err
		}
		return s.buildResult2(p.Authority, p.Destination, func(a, b solana.PublicKey) (*solana.Transaction, error) {
			return s.builder.AdminWithdraw(a, b, p.Amount)
		})

	case "buildAdminBanUser":
		var p struct {
			Authority     string `json:"authority"`
			UserAuthority string `json:"user_authority"`
		}
		if err := parse(req.Params, &p); err != nil {
			return nil, err
		}
		return s.buildResult2(p.Authority, p.UserAuthority, s.builder.AdminBanUser)

	case "buildAdminUnbanUser":
		var p struct {
			Authority     string `json:"authority"`
			UserAuthority string `json:"user_authority"`
		}
		if err := parse(req.Params, &p); err != nil {
			return nil, err
		}
		return s.buildResult2(p.Authority, p.UserAuthority, s.builder.AdminUnbanUser)

	case "buildAdminDispatchCommand":
		var p struct {
			Authority     string `json:"authority"`
			UserAuthority string `json:"user_authority"`
			CommandID     uint16 `json:"command_id"`
			Payload       string `json:"payload"`
		}
		if err := parse(req.Params, &p); err != nil {
			return nil, err
		}
		payload, err := decodePayload(p.Payload)
		if err != nil {
			return nil, err
		}
		return s.buildResult2(p.Authority, p.UserAuthority, func(a, b solana.PublicKey) (*solana.Transaction, error) {
			return s.builder.AdminDispatchCommand(a, b, p.CommandID, payload)
		})

	case "buildAdminCloseProfile":
		var p struct {
			Authority string `json:"authority"`
		}
		if err := parse(req.Params, &p); err != nil {
			return nil, err
		}
		a, err := parseKey("authority", p.Authority)
		if err != nil {
			return nil, err
		}
		return s.txResult(s.builder.AdminCloseProfile(a))

	case "buildUserCreateProfile":
		var p struct {
			Authority    string `json:"authority"`
			AdminProfile string `json:"admin_profile"`
			CommKey      string `json:"comm_key"`
		}
		if err := parse(req.Params, &p); err != nil {
			return nil, err
		}
		return s.buildResult3(p.Authority, p.AdminProfile, p.CommKey, s.builder.UserCreateProfile)

	case "buildUserDeposit":
		var p struct {
			Authority    string `json:"authority"`
			AdminProfile string `json:"admin_profile"`
			Amount       uint64 `json:"amount"`
		}
		if err := parse(req.Params, &p); err != nil {
			return nil, err
		}
		return s.buildResult2(p.Authority, p.AdminProfile, func(a, b solana.PublicKey) (*solana.Transaction, error) {
			return s.builder.UserDeposit(a, b, p.Amount)
		})

	case "buildUserWithdraw":
		var p struct {
			Authority    string `json:"authority"`
			AdminProfile string `json:"admin_profile"`
			Destination  string `json:"destination"`
			Amount       uint64 `json:"amount"`
		}
		if err := parse(req.Params, &p); err != nil {
			return nil, err
		}
		return s.buildResult3(p.Authority, p.AdminProfile, p.Destination, func(a, b, c solana.PublicKey) (*solana.Transaction, error) {
			return s.builder.UserWithdraw(a, b, c, p.Amount)
		})

	case "buildUserUpdateCommKey":
		var p struct {
			Authority    string `json:"authority"`
			AdminProfile string `json:"admin_profile"`
			CommKey      string `json:"comm_key"`
		}
		if err := parse(req.Params, &p); err != nil {
			return nil, err
		}
		return s.buildResult3(p.Authority, p.AdminProfile, p.CommKey, s.builder.UserUpdateCommKey)

	case "buildUserRequestUnban":
		var p struct {
			Authority    string `json:"authority"`
			AdminProfile string `json:"admin_profile"`
		}
		if err := parse(req.Params, &p); err != nil {
			return nil, err
		}
		return s.buildResult2(p.Authority, p.AdminProfile, s.builder.UserRequestUnban)

	case "buildUserDispatchCommand":
		var p struct {
			Authority       string `json:"authority"`
			AdminProfile    string `json:"admin_profile"`
			OracleKey       string `json:"oracle_key"`
			OracleSignature string `json:"oracle_signature"`
			CommandID       uint16 `json:"command_id"`
			Price           uint64 `json:"price"`
			Timestamp       int64  `json:"timestamp"`
			Payload         string `json:"payload"`
		}
		if err := parse(req.Params, &p); err != nil {
			return nil, err
		}
		payload, err := decodePayload(p.Payload)
		if err != nil {
			return nil, err
		}
		rawSig, err := base64.StdEncoding.DecodeString(p.OracleSignature)
		if err != nil || len(rawSig) != 64 {
			return nil, paramsErr("oracle_signature must be 64 base64-encoded bytes")
		}
		var sig [64]byte
		copy(sig[:], rawSig)
		return s.buildResult3(p.Authority, p.AdminProfile, p.OracleKey, func(a, b, c solana.PublicKey) (*solana.Transaction, error) {
			return s.builder.UserDispatchCommand(a, b, c, sig, p.CommandID, p.Price, p.Timestamp, payload)
		})

	case "buildUserCloseProfile":
		var p struct {
			Authority    string `json:"authority"`
			AdminProfile string `json:"admin_profile"`
		}
		if err := parse(req.Params, &p); err != nil {
			return nil, err
		}
		return s.buildResult2(p.Authority, p.AdminProfile, s.builder.UserCloseProfile)

	case "buildLogAction":
		var p struct {
			Authority string `json:"authority"`
			Profile   string `json:"profile"`
			ActionID  uint16 `json:"action_id"`
			Payload   string `json:"payload"`
		}
		if err := parse(req.Params, &p); err != nil {
			return nil, err
		}
		payload, err := decodePayload(p.Payload)
		if err != nil {
			return nil, err
		}
		return s.buildResult2(p.Authority, p.Profile, func(a, b solana.PublicKey) (*solana.Transaction, error) {
			return s.builder.LogAction(a, b, p.ActionID, payload)
		})

	case "submitTransaction":
		var p struct {
			Tx string `json:"tx"`
		}
		if err := parse(req.Params, &p); err != nil {
			return nil, err
		}
		raw, err := base64.StdEncoding.DecodeString(p.Tx)
		if err != nil {
			return nil, paramsErr("tx must be base64")
		}
		sig, err := s.submitter.Submit(r.Context(), raw)
		if err != nil {
			return nil, err
		}
		return map[string]string{"signature": sig.String()}, nil

	case "getAdminProfile":
		var p struct {
			Authority string `json:"authority"`
		}
		if err := parse(req.Params, &p); err != nil {
			return nil, err
		}
		authority, err := parseKey("authority", p.Authority)
		if err != nil {
			return nil, err
		}
		pda, _, err := types.AdminProfileAddress(s.builder.ProgramID(), authority)
		if err != nil {
			return nil, paramsErr("derive admin profile: %v", err)
		}
		raw, err := s.fetchAccount(r, pda)
		if err != nil {
			return nil, err
		}
		profile, err := types.DecodeAdminProfile(raw)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"pda":              pda.String(),
			"authority":        profile.Authority.String(),
			"oracle_authority": profile.OracleAuthority.String(),
			"comm_key":         profile.CommKey.String(),
			"balance":          profile.Balance,
			"unban_fee":        profile.UnbanFee,
			"created_at":       profile.CreatedAt,
		}, nil

	case "getUserProfile":
		var p struct {
			Authority    string `json:"authority"`
			AdminProfile string `json:"admin_profile"`
		}
		if err := parse(req.Params, &p); err != nil {
			return nil, err
		}
		authority, err := parseKey("authority", p.Authority)
		if err != nil {
			return nil, err
		}
		admin, err := parseKey("admin_profile", p.AdminProfile)
		if err != nil {
			return nil, err
		}
		pda, _, err := types.UserProfileAddress(s.builder.ProgramID(), authority, admin)
		if err != nil {
			return nil, paramsErr("derive user profile: %v", err)
		}
		raw, err := s.fetchAccount(r, pda)
		if err != nil {
			return nil, err
		}
		profile, err := types.DecodeUserProfile(raw)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"pda":             pda.String(),
			"authority":       profile.Authority.String(),
			"admin_profile":   profile.AdminProfile.String(),
			"comm_key":        profile.CommKey.String(),
			"deposit_balance": profile.DepositBalance,
			"banned":          profile.Banned,
			"unban_requested": profile.UnbanRequested,
			"created_at":      profile.CreatedAt,
		}, nil

	case "getCursor":
		var p struct {
			PDA string `json:"pda"`
		}
		if err := parse(req.Params, &p); err != nil {
			return nil, err
		}
		pda, err := parseKey("pda", p.PDA)
		if err != nil {
			return nil, err
		}
		cursor, ok, err := s.events.Cursor(pda)
		if err != nil {
			return nil, err
		}
		if !ok {
			return map[string]interface{}{"exists": false}, nil
		}
		return map[string]interface{}{
			"exists":           true,
			"last_signature":   cursor.LastSignature.String(),
			"last_slot":        cursor.LastSlot,
			"oldest_signature": cursor.OldestSignature.String(),
			"catchup_complete": cursor.CatchupComplete,
		}, nil

	default:
		return nil, &codedError{code: codeUnknownMethod, err: fmt.Errorf("unknown method %q", req.Method)}
	}
}

func (s *Server) fetchAccount(r *http.Request, pda solana.PublicKey) ([]byte, error) {
	if s.accounts == nil {
		return nil, fmt.Errorf("account lookups unavailable")
	}
	return s.accounts.FetchAccount(r.Context(), pda)
}

func parse(raw json.RawMessage, into interface{}) error {
	if len(raw) == 0 {
		return paramsErr("missing params")
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return paramsErr("bad params: %v", err)
	}
	return nil
}

func parseKey(name, s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, paramsErr("%s is not a valid public key", name)
	}
	return pk, nil
}

func decodePayload(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, paramsErr("payload must be base64")
	}
	return raw, nil
}

func (s *Server) buildResult2(k1, k2 string, build func(a, b solana.PublicKey) (*solana.Transaction, error)) (interface{}, error) {
	a, err := parseKey("key", k1)
	if err != nil {
		return nil, err
	}
	b, err := parseKey("key", k2)
	if err != nil {
		return nil, err
	}
	return s.txResult(build(a, b))
}

func (s *Server) buildResult3(k1, k2, k3 string, build func(a, b, c solana.PublicKey) (*solana.Transaction, error)) (interface{}, error) {
	a, err := parseKey("key", k1)
	if err != nil {
		return nil, err
	}
	b, err := parseKey("key", k2)
	if err != nil {
		return nil, err
	}
	c, err := parseKey("key", k3)
	if err != nil {
		return nil, err
	}
	return s.txResult(build(a, b, c))
}

// txResult serializes an unsigned transaction for the external signer.
func (s *Server) txResult(tx *solana.Transaction, err error) (interface{}, error) {
	if err != nil {
		if isInputError(err) {
			return nil, &codedError{code: codeInvalidParams, err: err}
		}
		return nil, err
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return map[string]string{"tx": base64.StdEncoding.EncodeToString(raw)}, nil
}

func isInputError(err error) bool {
	for _, target := range []error{
		txbuilder.ErrInvalidAmount,
		txbuilder.ErrInvalidKey,
		txbuilder.ErrPayloadTooLarge,
		txbuilder.ErrSerialization,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
