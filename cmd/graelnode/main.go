// Package main is graelnode's process entry point: a single binary with
// three subcommands (genesis, reindex, node) in the style of the
// teacher's cmd/kcn, but built on urfave/cli directly rather than the
// teacher's cmd/utils wrapper, since this node has no JSON-RPC/IPC
// surface or multi-network config to share across commands.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/klaytn/graelnode/internal/log"
	"github.com/klaytn/graelnode/ledger"
	"github.com/klaytn/graelnode/ledger/index"
	"github.com/klaytn/graelnode/minter"
	"github.com/klaytn/graelnode/pkg/asset"
	"github.com/klaytn/graelnode/pkg/crypto"
	"github.com/klaytn/graelnode/wire"
)

var logger = log.NewModuleLogger(log.ModuleCmd)

var (
	dataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Directory holding the block log and index",
		Value: "./data",
	}
	unitFlag = cli.StringFlag{
		Name:  "unit",
		Usage: "Asset unit symbol used by genesis, rewards and fees",
		Value: asset.DefaultUnit,
	}
	minFeeFlag = cli.Int64Flag{
		Name:  "minfee",
		Usage: "Minimum scaled transaction fee accepted by VerifyTx",
		Value: 0,
	}
	listenFlag = cli.StringFlag{
		Name:  "listen",
		Usage: "Address the WebSocket endpoint listens on",
		Value: "127.0.0.1:8765",
	}
	minterKeyFlag = cli.StringFlag{
		Name:  "minterkey",
		Usage: "WIF-encoded minter private key",
	}
	rewardAddrFlag = cli.StringFlag{
		Name:  "rewardaddr",
		Usage: "Hex-encoded 20-byte address credited with each block's reward",
	}
	rewardAmountFlag = cli.Int64Flag{
		Name:  "rewardamount",
		Usage: "Scaled reward amount minted into rewardaddr per block",
	}
	blockIntervalFlag = cli.DurationFlag{
		Name:  "blockinterval",
		Usage: "Wall-clock interval between minted blocks",
		Value: 3 * time.Second,
	}
	walletCountFlag = cli.IntFlag{
		Name:  "walletcount",
		Usage: "Number of owner-wallet multisig keys to generate at genesis",
		Value: 3,
	}
	thresholdFlag = cli.IntFlag{
		Name:  "threshold",
		Usage: "Number of owner-wallet signatures required to authorize a MintTx/OwnerTx",
		Value: 2,
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "graelnode"
	app.Usage = "single-chain graelnode block producer and query server"
	app.Flags = []cli.Flag{dataDirFlag, unitFlag, minFeeFlag}
	app.Commands = []cli.Command{
		genesisCommand,
		reindexCommand,
		nodeCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openChain(c *cli.Context) (*ledger.Blockchain, error) {
	dir := c.GlobalString(dataDirFlag.Name)
	return ledger.Open(ledger.Options{
		BlockLogPath:     dir + "/blocks.log",
		IndexDir:         dir + "/index",
		Unit:             c.GlobalString(unitFlag.Name),
		AutoTrimBlockLog: true,
		MinFee:           asset.New(c.GlobalInt64(minFeeFlag.Name), c.GlobalString(unitFlag.Name)),
	})
}

var genesisCommand = cli.Command{
	Name:  "genesis",
	Usage: "Create the height-0 block and print the generated minter/wallet keys",
	Flags: []cli.Flag{walletCountFlag, thresholdFlag},
	Action: func(c *cli.Context) error {
		bc, err := openChain(c)
		if err != nil {
			return err
		}
		defer bc.Close()

		minterKey, err := crypto.Gen()
		if err != nil {
			return err
		}
		info, err := bc.CreateGenesisBlock(minterKey, c.Int(walletCountFlag.Name), c.Int(thresholdFlag.Name))
		if err != nil {
			return err
		}

		fmt.Printf("minter key:   %s\n", info.MinterKey.Private.WIF())
		fmt.Printf("minter pub:   %s\n", info.MinterKey.Public.WIF())
		for i, kp := range info.WalletKeys {
			fmt.Printf("wallet key %d: %s (pub %s)\n", i, kp.Private.WIF(), kp.Public.WIF())
		}
		fmt.Printf("threshold:    %d of %d\n", info.Threshold, len(info.WalletKeys))
		return nil
	},
}

var reindexCommand = cli.Command{
	Name:  "reindex",
	Usage: "Rebuild the secondary index from the block log alone",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "minterpub", Usage: "WIF-encoded genesis minter public key"},
		cli.StringSliceFlag{Name: "walletpub", Usage: "WIF-encoded owner wallet public key (repeatable)"},
		thresholdFlag,
	},
	Action: func(c *cli.Context) error {
		bc, err := openChain(c)
		if err != nil {
			return err
		}
		defer bc.Close()

		minterPub, err := crypto.ParsePublicKeyWIF(c.String("minterpub"))
		if err != nil {
			return fmt.Errorf("graelnode: --minterpub: %w", err)
		}
		var wallet []crypto.PublicKey
		for _, s := range c.StringSlice("walletpub") {
			pub, err := crypto.ParsePublicKeyWIF(s)
			if err != nil {
				return fmt.Errorf("graelnode: --walletpub: %w", err)
			}
			wallet = append(wallet, pub)
		}

		genesisOwner := index.Owner{
			Minter:     minterPub,
			WalletKeys: wallet,
			Threshold:  c.Int(thresholdFlag.Name),
		}
		if err := bc.Reindex(genesisOwner); err != nil {
			return err
		}
		fmt.Println("reindex complete")
		return nil
	},
}

var nodeCommand = cli.Command{
	Name:  "node",
	Usage: "Run the minting and query server",
	Flags: []cli.Flag{
		listenFlag,
		minterKeyFlag,
		rewardAddrFlag,
		rewardAmountFlag,
		blockIntervalFlag,
		cli.BoolFlag{Name: "enablestaleproduction", Usage: "keep minting past a missed block interval instead of idling in Stale"},
	},
	Action: func(c *cli.Context) error {
		bc, err := openChain(c)
		if err != nil {
			return err
		}
		defer bc.Close()

		if bc.NeedsReindex() {
			return fmt.Errorf("graelnode: index is not Complete, run the reindex command first")
		}

		minterKey, err := crypto.ParsePrivateKeyWIF(c.String(minterKeyFlag.Name))
		if err != nil {
			return fmt.Errorf("graelnode: --minterkey: %w", err)
		}
		rewardAddrHex := c.String(rewardAddrFlag.Name)
		rewardAddrRaw, err := hex.DecodeString(rewardAddrHex)
		if err != nil || len(rewardAddrRaw) != 20 {
			return fmt.Errorf("graelnode: --rewardaddr must be 20 bytes of hex")
		}
		var rewardAddr [20]byte
		copy(rewardAddr[:], rewardAddrRaw)

		unit := c.GlobalString(unitFlag.Name)
		mempool, err := minter.NewMempool(bc)
		if err != nil {
			return err
		}

		props, err := bc.GetProperties()
		if err != nil {
			return err
		}

		m := minter.New(bc, mempool, minter.Options{
			Key:                   crypto.KeyPair{Public: props.Owner.Minter, Private: minterKey},
			RewardAddr:            rewardAddr,
			RewardAmount:          asset.New(c.Int64(rewardAmountFlag.Name), unit),
			BlockInterval:         c.Duration(blockIntervalFlag.Name),
			EnableStaleProduction: c.Bool("enablestaleproduction"),
		})
		m.Start()
		defer m.Stop()

		subs := wire.NewSubscriptions()
		h := &wire.Handler{Chain: bc, Mint: m, Subs: subs, Unit: unit}

		addr := c.String(listenFlag.Name)
		logger.Info("graelnode starting", "listen", addr)
		return wire.ListenAndServe(addr, h)
	},
}
