// Package script implements the fixed script engine spec.md §1 treats as
// an external collaborator: it resolves an opaque byte sequence against a
// transaction context and returns pass/fail plus a fee. This
// implementation gives it a concrete, minimal two-opcode form (push-false
// / push-true) rather than a general VM — spec.md's explicit Non-goal is
// "no smart-contract VM beyond the fixed script engine", so the engine
// itself is deliberately not extensible.
package script

import (
	"github.com/klaytn/graelnode/pkg/asset"
	"github.com/klaytn/graelnode/pkg/crypto"
)

// Opcode is a single instruction in a Script.
type Opcode byte

const (
	// OpFalse always fails evaluation; used by the genesis owner script
	// to mean "this wallet cannot be spent from directly".
	OpFalse Opcode = 0x00
	// OpTrue passes evaluation, charging exactly RequiredFee, whenever at
	// least one signature was verified; used by generated wallet scripts
	// in tests and by MintTx target scripts.
	OpTrue Opcode = 0x01
)

// Script is an opaque, serializable byte sequence.
type Script []byte

// PushFalse returns the canonical "always fail" script.
func PushFalse() Script { return Script{byte(OpFalse)} }

// PushTrue returns the canonical "pass when signed" script (OpTrue).
func PushTrue() Script { return Script{byte(OpTrue)} }

// Hash returns the script-hash address form of s, used to locate the
// balance a TransferTx's spending script authorizes moving funds out of.
func (s Script) Hash() [20]byte { return crypto.HashBytes(s) }

// Context carries the information the engine needs to evaluate a script:
// the required fee floor from a schedule, and whether the number of
// valid signatures presented meets the script's own requirement.
type Context struct {
	RequiredFee  asset.Asset
	SigsVerified int
}

// Result is the engine's verdict: whether the script passed, and the fee
// it charges (which may exceed RequiredFee if the script demands more).
type Result struct {
	Pass bool
	Fee  asset.Asset
}

// Eval resolves s against ctx.
func Eval(s Script, ctx Context) Result {
	if len(s) == 0 {
		return Result{Pass: false}
	}
	switch Opcode(s[0]) {
	case OpFalse:
		return Result{Pass: false}
	case OpTrue:
		if ctx.SigsVerified < 1 {
			return Result{Pass: false}
		}
		return Result{Pass: true, Fee: ctx.RequiredFee}
	default:
		return Result{Pass: false}
	}
}
