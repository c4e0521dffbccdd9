package ledger

import "github.com/klaytn/graelnode/pkg/asset"

// TxReplayWindow is the number of most recent blocks a transaction hash
// must be absent from to be accepted as new (spec.md §4.4 step 4). Not
// stated numerically by spec.md; fixed here per SPEC_FULL.md §11.
const TxReplayWindow = 1024

// Options carries the on-disk layout and chain parameters administered
// by the process entry point (spec.md §6's "administrative controls"),
// passed into Open rather than parsed from flags inside this package.
type Options struct {
	BlockLogPath     string
	IndexDir         string
	Unit             string
	AutoTrimBlockLog bool
	ReplayWindow     uint64 // 0 defaults to TxReplayWindow
	MinFee           asset.Asset
}

func (o Options) replayWindow() uint64 {
	if o.ReplayWindow == 0 {
		return TxReplayWindow
	}
	return o.ReplayWindow
}
