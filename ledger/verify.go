package ledger

import (
	"time"

	"github.com/klaytn/graelnode/chain"
	"github.com/klaytn/graelnode/internal/xerr"
	"github.com/klaytn/graelnode/ledger/index"
	"github.com/klaytn/graelnode/pkg/asset"
	"github.com/klaytn/graelnode/pkg/script"
	"github.com/klaytn/graelnode/pkg/txscript"
)

// MaxClockDriftMillis bounds how far a transaction's timestamp may drift
// from wall-clock time in either direction before it is rejected
// (spec.md §3/§4.4 step 2: ±3600 seconds).
const MaxClockDriftMillis = 3600 * 1000

// VerifyTx runs the ordered verification algorithm against the current
// chain state (spec.md §4.4 steps 1-7), without inserting anything. The
// mempool calls this before admitting a transaction; InsertBlock reuses
// the same steps under its own write lock via verifyTxLocked.
func (bc *Blockchain) VerifyTx(tx chain.TxVariant) error {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	owner, ok := bc.idx.ReadOwner()
	if !ok {
		return xerr.New(xerr.KindInvalidRequest, "chain has no owner snapshot")
	}
	supply := bc.idx.ReadSupply()
	return bc.verifyTxLocked(tx, owner, supply, false)
}

// verifyTxLocked assumes the caller already holds either lock. allowReward
// is true only for the last transaction of a block being inserted — a
// RewardTx presented anywhere else (standalone, or not block-final) fails
// step 1.
func (bc *Blockchain) verifyTxLocked(tx chain.TxVariant, owner index.Owner, supply asset.Asset, allowReward bool) error {
	base := tx.Base()

	// step 1: shape
	if len(base.SigPairs) > chain.MaxSigPairs {
		return xerr.TxValidation("TooManySignatures")
	}
	if _, isReward := tx.(*chain.RewardTx); isReward && !allowReward {
		return xerr.TxValidation("RewardTxNotBlockFinal")
	}
	if err := shapeCheck(tx); err != nil {
		return err
	}

	// step 2: timestamp
	now := uint64(time.Now().UnixMilli())
	if diff := absDiff(now, base.Timestamp); diff > MaxClockDriftMillis {
		return xerr.TxValidation("TimestampOutOfRange")
	}

	// step 3: fee
	if _, isReward := tx.(*chain.RewardTx); !isReward {
		if base.Fee.Cmp(bc.minFee) < 0 {
			return xerr.TxValidation("FeeTooLow")
		}
	}

	// step 4: uniqueness / replay window
	if bc.replay.Contains(chain.Hash(tx)) {
		return xerr.TxValidation("DuplicateTransaction")
	}

	// step 5: signature check
	if _, isReward := tx.(*chain.RewardTx); !isReward {
		if !txscript.VerifyAll(chain.SigningBytes(tx), base.SigPairs) {
			return xerr.TxValidation("InvalidSignature")
		}
	}

	// step 6 + 7: script evaluation and variant-specific rules
	switch t := tx.(type) {
	case *chain.TransferTx:
		return bc.verifyTransfer(t)
	case *chain.MintTx:
		return bc.verifyMint(t, owner)
	case *chain.RewardTx:
		return nil
	case *chain.OwnerTx:
		return bc.verifyOwner(t, owner)
	default:
		return xerr.TxValidation("UnknownTxKind")
	}
}

func shapeCheck(tx chain.TxVariant) error {
	switch t := tx.(type) {
	case *chain.TransferTx:
		if !t.Amount.Positive() {
			return xerr.TxValidation("NonPositiveAmount")
		}
		if len(t.Memo) > 1<<16 {
			return xerr.TxValidation("MemoTooLarge")
		}
	case *chain.MintTx:
		if !t.Amount.Positive() {
			return xerr.TxValidation("NonPositiveAmount")
		}
	case *chain.RewardTx:
		if !t.Rewards.Positive() {
			return xerr.TxValidation("NonPositiveAmount")
		}
	}
	return nil
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

func (bc *Blockchain) verifyTransfer(t *chain.TransferTx) error {
	result := script.Eval(t.From, script.Context{RequiredFee: bc.minFee, SigsVerified: len(t.SigPairs)})
	if !result.Pass {
		return xerr.TxValidation("ScriptEvalFailed")
	}
	from := t.From.Hash()
	total, ok := t.Amount.CheckedAdd(t.Fee)
	if !ok {
		return xerr.TxValidation("AmountOverflow")
	}
	balance := bc.idx.ReadBalance(from)
	if balance.Cmp(total) < 0 {
		return xerr.TxValidation("InsufficientBalance")
	}
	return nil
}

func (bc *Blockchain) verifyMint(t *chain.MintTx, owner index.Owner) error {
	if !txscript.CheckMultisig(chain.SigningBytes(t), owner.WalletKeys, t.SigPairs, owner.Threshold) {
		return xerr.TxValidation("OwnerMultisigNotMet")
	}
	result := script.Eval(t.Script, script.Context{RequiredFee: asset.Zero(), SigsVerified: 1})
	if !result.Pass {
		return xerr.TxValidation("ScriptEvalFailed")
	}
	return nil
}

func (bc *Blockchain) verifyOwner(t *chain.OwnerTx, owner index.Owner) error {
	if !txscript.CheckMultisig(chain.SigningBytes(t), owner.WalletKeys, t.SigPairs, owner.Threshold) {
		return xerr.TxValidation("OwnerMultisigNotMet")
	}
	return nil
}

// applySupply returns the token supply after applying tx's effect
// (MintTx and RewardTx increase it; TransferTx and OwnerTx do not touch
// it).
func applySupply(supply asset.Asset, tx chain.TxVariant) (asset.Asset, error) {
	switch t := tx.(type) {
	case *chain.MintTx:
		sum, ok := supply.CheckedAdd(t.Amount)
		if !ok {
			return asset.Asset{}, xerr.TxValidation("SupplyOverflow")
		}
		return sum, nil
	case *chain.RewardTx:
		sum, ok := supply.CheckedAdd(t.Rewards)
		if !ok {
			return asset.Asset{}, xerr.TxValidation("SupplyOverflow")
		}
		return sum, nil
	default:
		return supply, nil
	}
}

// applyBalances debits/credits the addresses tx touches. Called only
// after every transaction in the block has already passed verifyTxLocked,
// so the checked arithmetic here cannot fail in practice; errors are
// still surfaced rather than ignored.
func (bc *Blockchain) applyBalances(tx chain.TxVariant) error {
	switch t := tx.(type) {
	case *chain.TransferTx:
		from := t.From.Hash()
		total, ok := t.Amount.CheckedAdd(t.Fee)
		if !ok {
			return xerr.TxValidation("AmountOverflow")
		}
		fromBal, ok := bc.idx.ReadBalance(from).CheckedSub(total)
		if !ok {
			return xerr.TxValidation("InsufficientBalance")
		}
		if err := bc.idx.WriteBalance(from, fromBal); err != nil {
			return xerr.Io(err)
		}
		toBal, ok := bc.idx.ReadBalance(t.To).CheckedAdd(t.Amount)
		if !ok {
			return xerr.TxValidation("AmountOverflow")
		}
		if err := bc.idx.WriteBalance(t.To, toBal); err != nil {
			return xerr.Io(err)
		}
		return nil
	case *chain.MintTx:
		toBal, ok := bc.idx.ReadBalance(t.To).CheckedAdd(t.Amount)
		if !ok {
			return xerr.TxValidation("AmountOverflow")
		}
		if err := bc.idx.WriteBalance(t.To, toBal); err != nil {
			return xerr.Io(err)
		}
		return nil
	case *chain.RewardTx:
		toBal, ok := bc.idx.ReadBalance(t.To).CheckedAdd(t.Rewards)
		if !ok {
			return xerr.TxValidation("AmountOverflow")
		}
		if err := bc.idx.WriteBalance(t.To, toBal); err != nil {
			return xerr.Io(err)
		}
		return nil
	default:
		return nil
	}
}

// ownerAfter returns the owner snapshot as it should read after txs, and
// whether it actually changed (only an OwnerTx mutates it).
func ownerAfter(owner index.Owner, txs []chain.TxVariant) (index.Owner, bool) {
	changed := false
	for _, tx := range txs {
		if t, ok := tx.(*chain.OwnerTx); ok {
			owner.Minter = t.MinterKey
			owner.Script = t.WalletScript
			changed = true
		}
	}
	return owner, changed
}
