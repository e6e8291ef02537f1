package grpcnode

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	"xdao.co/caspub/cidutil"
	"xdao.co/caspub/ledger"
)

// Wire layouts for the composite structpb.Struct messages.
//
// Submit request:
//
//	{
//	  "call": {
//	    "kind": "store",
//	    "data": "<base64>", "codec": <number>, "hash": <number>
//	  } | {
//	    "kind": "authorize",
//	    "account": "<address>", "transactions": "<decimal>", "bytes": "<decimal>"
//	  },
//	  "signer": {"address": "<address>", "signature": "<base64>"},
//	  "nonce": "<decimal>"            // optional, pre-assigned ordering number
//	}
//
// Status event:
//
//	{
//	  "phase": "signing" | "broadcasting" | "included" | "finalized" | "failed",
//	  "tx_hash": "...", "block_hash": "...",
//	  "stored_index": "<decimal>",    // optional, finalized store calls only
//	  "stored_cid": "...",
//	  "error": {"pallet": "...", "name": "..."} | {"message": "..."}  // optional
//	}
//
// Quota response:
//
//	{"transactions": "<decimal>", "bytes": "<decimal>"}
//
// uint64 and big.Int values travel as decimal strings: structpb numbers are
// IEEE doubles and cannot carry them without loss.

func encodeSubmitRequest(call ledger.Call, address ledger.AccountID, signature []byte, nonce *uint64) (*structpb.Struct, error) {
	callFields, err := encodeCall(call)
	if err != nil {
		return nil, err
	}
	fields := map[string]interface{}{
		"call": callFields,
		"signer": map[string]interface{}{
			"address":   string(address),
			"signature": base64.StdEncoding.EncodeToString(signature),
		},
	}
	if nonce != nil {
		fields["nonce"] = strconv.FormatUint(*nonce, 10)
	}
	return structpb.NewStruct(fields)
}

func encodeCall(call ledger.Call) (map[string]interface{}, error) {
	switch c := call.(type) {
	case ledger.StoreCall:
		return map[string]interface{}{
			"kind":  "store",
			"data":  base64.StdEncoding.EncodeToString(c.Data),
			"codec": float64(c.Codec),
			"hash":  float64(c.Hash),
		}, nil
	case ledger.AuthorizeCall:
		bytes := c.Bytes
		if bytes == nil {
			bytes = new(big.Int)
		}
		return map[string]interface{}{
			"kind":         "authorize",
			"account":      string(c.Account),
			"transactions": strconv.FormatUint(c.Transactions, 10),
			"bytes":        bytes.String(),
		}, nil
	default:
		return nil, fmt.Errorf("grpcnode: unsupported call type %T", call)
	}
}

func decodeSubmitRequest(msg *structpb.Struct) (ledger.Call, ledger.AccountID, []byte, *uint64, error) {
	callMsg, err := getStruct(msg, "call")
	if err != nil {
		return nil, "", nil, nil, err
	}
	call, err := decodeCall(callMsg)
	if err != nil {
		return nil, "", nil, nil, err
	}

	signerMsg, err := getStruct(msg, "signer")
	if err != nil {
		return nil, "", nil, nil, err
	}
	address, err := getString(signerMsg, "address")
	if err != nil {
		return nil, "", nil, nil, err
	}
	signature, err := getBytes(signerMsg, "signature")
	if err != nil {
		return nil, "", nil, nil, err
	}

	var nonce *uint64
	if _, ok := msg.GetFields()["nonce"]; ok {
		n, err := getUint64(msg, "nonce")
		if err != nil {
			return nil, "", nil, nil, err
		}
		nonce = &n
	}
	return call, ledger.AccountID(address), signature, nonce, nil
}

func decodeCall(msg *structpb.Struct) (ledger.Call, error) {
	kind, err := getString(msg, "kind")
	if err != nil {
		return nil, err
	}
	switch kind {
	case "store":
		data, err := getBytes(msg, "data")
		if err != nil {
			return nil, err
		}
		codec, err := getNumber(msg, "codec")
		if err != nil {
			return nil, err
		}
		hash, err := getNumber(msg, "hash")
		if err != nil {
			return nil, err
		}
		return ledger.StoreCall{
			Data:  data,
			Codec: cidutil.Codec(codec),
			Hash:  cidutil.HashAlg(hash),
		}, nil
	case "authorize":
		account, err := getString(msg, "account")
		if err != nil {
			return nil, err
		}
		txs, err := getUint64(msg, "transactions")
		if err != nil {
			return nil, err
		}
		bytesStr, err := getString(msg, "bytes")
		if err != nil {
			return nil, err
		}
		bytes, ok := new(big.Int).SetString(bytesStr, 10)
		if !ok {
			return nil, fmt.Errorf("grpcnode: invalid byte quota %q", bytesStr)
		}
		return ledger.AuthorizeCall{Account: ledger.AccountID(account), Transactions: txs, Bytes: bytes}, nil
	default:
		return nil, fmt.Errorf("grpcnode: unknown call kind %q", kind)
	}
}

func encodeStatusEvent(ev ledger.StatusEvent) (*structpb.Struct, error) {
	fields := map[string]interface{}{
		"phase": ev.Phase.String(),
	}
	if ev.TxHash != "" {
		fields["tx_hash"] = ev.TxHash
	}
	if ev.BlockHash != "" {
		fields["block_hash"] = ev.BlockHash
	}
	if ev.StoredIndex != nil {
		fields["stored_index"] = strconv.FormatUint(*ev.StoredIndex, 10)
	}
	if ev.StoredCID != "" {
		fields["stored_cid"] = ev.StoredCID
	}
	if ev.Err != nil {
		var me *ledger.ModuleError
		if errors.As(ev.Err, &me) {
			fields["error"] = map[string]interface{}{"pallet": me.Pallet, "name": me.Name}
		} else if code, ok := sentinelCode(ev.Err); ok {
			fields["error"] = map[string]interface{}{"code": code, "message": ev.Err.Error()}
		} else {
			fields["error"] = map[string]interface{}{"message": ev.Err.Error()}
		}
	}
	return structpb.NewStruct(fields)
}

func decodeStatusEvent(msg *structpb.Struct) (ledger.StatusEvent, error) {
	phaseStr, err := getString(msg, "phase")
	if err != nil {
		return ledger.StatusEvent{}, err
	}
	phase, err := parsePhase(phaseStr)
	if err != nil {
		return ledger.StatusEvent{}, err
	}

	ev := ledger.StatusEvent{Phase: phase}
	ev.TxHash, _ = getString(msg, "tx_hash")
	ev.BlockHash, _ = getString(msg, "block_hash")
	ev.StoredCID, _ = getString(msg, "stored_cid")
	if _, ok := msg.GetFields()["stored_index"]; ok {
		idx, err := getUint64(msg, "stored_index")
		if err != nil {
			return ledger.StatusEvent{}, err
		}
		ev.StoredIndex = &idx
	}
	if errMsg, err := getStruct(msg, "error"); err == nil {
		pallet, perr := getString(errMsg, "pallet")
		name, nerr := getString(errMsg, "name")
		message, merr := getString(errMsg, "message")
		switch {
		case perr == nil && nerr == nil:
			ev.Err = &ledger.ModuleError{Pallet: pallet, Name: name}
		case merr == nil:
			if code, cerr := getString(errMsg, "code"); cerr == nil {
				if sentinel, ok := sentinelByCode[code]; ok {
					ev.Err = fmt.Errorf("%w (remote: %s)", sentinel, message)
					break
				}
			}
			ev.Err = errors.New(message)
		default:
			return ledger.StatusEvent{}, errors.New("grpcnode: malformed error field in status event")
		}
	}
	return ev, nil
}

// Sentinel errors cross the wire as stable codes so errors.Is keeps working
// on the far side.
var sentinelByCode = map[string]error{
	"payload_too_large":      ledger.ErrPayloadTooLarge,
	"unauthorized":           ledger.ErrUnauthorized,
	"already_authorized":     ledger.ErrAlreadyAuthorized,
	"insufficient_privilege": ledger.ErrInsufficientPrivilege,
	"cid_mismatch":           ledger.ErrCIDMismatch,
	"invalid_nonce":          ledger.ErrInvalidNonce,
}

func sentinelCode(err error) (string, bool) {
	for code, sentinel := range sentinelByCode {
		if errors.Is(err, sentinel) {
			return code, true
		}
	}
	return "", false
}

func parsePhase(s string) (ledger.Phase, error) {
	for _, p := range []ledger.Phase{
		ledger.PhaseSigning,
		ledger.PhaseBroadcasting,
		ledger.PhaseIncluded,
		ledger.PhaseFinalized,
		ledger.PhaseFailed,
	} {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("grpcnode: unknown phase %q", s)
}

func encodeQuota(q *ledger.Quota) (*structpb.Struct, error) {
	bytes := q.Bytes
	if bytes == nil {
		bytes = new(big.Int)
	}
	return structpb.NewStruct(map[string]interface{}{
		"transactions": strconv.FormatUint(q.Transactions, 10),
		"bytes":        bytes.String(),
	})
}

func decodeQuota(msg *structpb.Struct) (*ledger.Quota, error) {
	txs, err := getUint64(msg, "transactions")
	if err != nil {
		return nil, err
	}
	bytesStr, err := getString(msg, "bytes")
	if err != nil {
		return nil, err
	}
	bytes, ok := new(big.Int).SetString(bytesStr, 10)
	if !ok {
		return nil, fmt.Errorf("grpcnode: invalid byte quota %q", bytesStr)
	}
	return &ledger.Quota{Transactions: txs, Bytes: bytes}, nil
}

func getString(msg *structpb.Struct, key string) (string, error) {
	v, ok := msg.GetFields()[key]
	if !ok {
		return "", fmt.Errorf("grpcnode: missing field %q", key)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("grpcnode: field %q is not a string", key)
	}
	return s.StringValue, nil
}

func getNumber(msg *structpb.Struct, key string) (uint64, error) {
	v, ok := msg.GetFields()[key]
	if !ok {
		return 0, fmt.Errorf("grpcnode: missing field %q", key)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("grpcnode: field %q is not a number", key)
	}
	return uint64(n.NumberValue), nil
}

func getUint64(msg *structpb.Struct, key string) (uint64, error) {
	s, err := getString(msg, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("grpcnode: field %q: %w", key, err)
	}
	return n, nil
}

func getBytes(msg *structpb.Struct, key string) ([]byte, error) {
	s, err := getString(msg, key)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("grpcnode: field %q: %w", key, err)
	}
	return data, nil
}

func getStruct(msg *structpb.Struct, key string) (*structpb.Struct, error) {
	v, ok := msg.GetFields()[key]
	if !ok {
		return nil, fmt.Errorf("grpcnode: missing field %q", key)
	}
	s, ok := v.GetKind().(*structpb.Value_StructValue)
	if !ok {
		return nil, fmt.Errorf("grpcnode: field %q is not a struct", key)
	}
	return s.StructValue, nil
}
