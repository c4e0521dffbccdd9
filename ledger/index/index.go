// Package index implements the ledger's secondary index: a persistent
// {height -> byte offset} map and {address -> balance} map, plus chain
// metadata and the reindex status flag, spec.md §4.3 (the reindex
// procedure itself is ledger.Blockchain.Reindex). Grounded on klaytn's
// storage/database.DBManager interface (a typed accessor layer over a
// swappable KV backend) and badger_database.go (the concrete backend
// this implementation wires in).
package index

import (
	"encoding/binary"

	"github.com/klaytn/graelnode/internal/log"
	"github.com/klaytn/graelnode/pkg/asset"
	"github.com/klaytn/graelnode/pkg/crypto"
	"github.com/klaytn/graelnode/pkg/script"
	"github.com/klaytn/graelnode/storage/kv"
)

var logger = log.NewModuleLogger(log.ModuleIndex)

// Status mirrors spec.md §4.3's index_status metadata flag.
type Status byte

const (
	StatusNone Status = iota
	StatusPartial
	StatusComplete
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "None"
	case StatusPartial:
		return "Partial"
	case StatusComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Owner is the chain properties' owner snapshot (spec.md §3). WalletKeys
// and Threshold realize the "≥ two of the wallet keys" multisig rule
// MintTx verification applies (spec.md §4.4 step 7): the fixed script
// engine has no opcode space to embed a public-key set, so the wallet's
// authorized signers are carried here as structured metadata alongside
// the spendability Script itself.
type Owner struct {
	Script     script.Script
	Minter     crypto.PublicKey
	WalletKeys []crypto.PublicKey
	Threshold  int
}

// Index owns the KV store backing height->offset, address->balance, and
// chain metadata.
type Index struct {
	store kv.Store
	unit  string
}

// Open wraps an already-open kv.Store as an Index.
func Open(store kv.Store, unit string) *Index {
	return &Index{store: store, unit: unit}
}

// --- key encoding ---

func heightKey(h uint64) []byte {
	buf := make([]byte, 2+8)
	buf[0], buf[1] = 'h', ':'
	binary.BigEndian.PutUint64(buf[2:], h)
	return buf
}

func balanceKey(addr [20]byte) []byte {
	buf := make([]byte, 2+20)
	buf[0], buf[1] = 'b', ':'
	copy(buf[2:], addr[:])
	return buf
}

const (
	metaHeight = "meta:height"
	metaSupply = "meta:supply"
	metaOwner  = "meta:owner"
	metaStatus = "meta:status"
)

// --- height -> offset ---

// WriteOffset records the file offset of the block at height.
func (ix *Index) WriteOffset(height uint64, offset int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(offset))
	return ix.store.Put(heightKey(height), buf[:])
}

// ReadOffset returns the file offset of the block at height, and whether
// it is present.
func (ix *Index) ReadOffset(height uint64) (int64, bool) {
	v, err := ix.store.Get(heightKey(height))
	if err != nil {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(v)), true
}

// --- address -> balance ---

// WriteBalance records addr's latest balance snapshot.
func (ix *Index) WriteBalance(addr [20]byte, bal asset.Asset) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(bal.Amount))
	return ix.store.Put(balanceKey(addr), buf[:])
}

// ReadBalance returns addr's balance, or the zero asset if unset.
func (ix *Index) ReadBalance(addr [20]byte) asset.Asset {
	v, err := ix.store.Get(balanceKey(addr))
	if err != nil {
		return asset.New(0, ix.unit)
	}
	return asset.New(int64(binary.BigEndian.Uint64(v)), ix.unit)
}

// --- metadata ---

// WriteHeight persists the current chain height.
func (ix *Index) WriteHeight(h uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h)
	return ix.store.Put([]byte(metaHeight), buf[:])
}

// ReadHeight returns the persisted chain height, or false if unset.
func (ix *Index) ReadHeight() (uint64, bool) {
	v, err := ix.store.Get([]byte(metaHeight))
	if err != nil {
		return 0, false
	}
	return binary.BigEndian.Uint64(v), true
}

// WriteSupply persists the current token supply.
func (ix *Index) WriteSupply(a asset.Asset) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(a.Amount))
	return ix.store.Put([]byte(metaSupply), buf[:])
}

// ReadSupply returns the persisted token supply.
func (ix *Index) ReadSupply() asset.Asset {
	v, err := ix.store.Get([]byte(metaSupply))
	if err != nil {
		return asset.New(0, ix.unit)
	}
	return asset.New(int64(binary.BigEndian.Uint64(v)), ix.unit)
}

// WriteOwner persists the owner snapshot: script length-prefixed, the
// 32-byte minter public key, a wallet key count, the wallet keys
// themselves, then the multisig threshold.
func (ix *Index) WriteOwner(o Owner) error {
	buf := make([]byte, 0, 4+len(o.Script)+32+4+len(o.WalletKeys)*32+4)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(o.Script)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, o.Script...)
	buf = append(buf, o.Minter.Bytes[:]...)

	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(o.WalletKeys)))
	buf = append(buf, countBuf[:]...)
	for _, k := range o.WalletKeys {
		buf = append(buf, k.Bytes[:]...)
	}

	var threshBuf [4]byte
	binary.BigEndian.PutUint32(threshBuf[:], uint32(o.Threshold))
	buf = append(buf, threshBuf[:]...)
	return ix.store.Put([]byte(metaOwner), buf)
}

// ReadOwner returns the persisted owner snapshot.
func (ix *Index) ReadOwner() (Owner, bool) {
	v, err := ix.store.Get([]byte(metaOwner))
	if err != nil || len(v) < 4 {
		return Owner{}, false
	}
	n := binary.BigEndian.Uint32(v[:4])
	off := 4 + int(n)
	if len(v) < off+32+4 {
		return Owner{}, false
	}
	sc := script.Script(v[4:off])
	var minter crypto.PublicKey
	copy(minter.Bytes[:], v[off:off+32])
	off += 32

	count := binary.BigEndian.Uint32(v[off : off+4])
	off += 4
	if len(v) < off+int(count)*32+4 {
		return Owner{}, false
	}
	wallet := make([]crypto.PublicKey, count)
	for i := range wallet {
		copy(wallet[i].Bytes[:], v[off:off+32])
		off += 32
	}
	threshold := int(binary.BigEndian.Uint32(v[off : off+4]))

	return Owner{Script: sc, Minter: minter, WalletKeys: wallet, Threshold: threshold}, true
}

// WriteStatus persists the index's reindex status.
func (ix *Index) WriteStatus(s Status) error {
	return ix.store.Put([]byte(metaStatus), []byte{byte(s)})
}

// ReadStatus returns the persisted reindex status, StatusNone if unset.
func (ix *Index) ReadStatus() Status {
	v, err := ix.store.Get([]byte(metaStatus))
	if err != nil || len(v) != 1 {
		return StatusNone
	}
	return Status(v[0])
}

// Close releases the underlying store.
func (ix *Index) Close() error { return ix.store.Close() }
