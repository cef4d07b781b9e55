// Command allocator-bot runs the automated DataCap allocator: it watches the
// chain for bids sent to its wallet, runs periodic auctions over the open
// round, dispatches verified-registry allocations, burns a protocol fee, and
// requests replenishment of its own DataCap reserve.
package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/filecoin-project/go-address"
	filbig "github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/lotus/chain/types/ethtypes"
	"github.com/filecoin-project/specs-actors/actors/builtin"
	cid "github.com/ipfs/go-cid"
	"github.com/urfave/cli/v2"

	"github.com/CELtd/filplus-autocap/internal/auction"
	"github.com/CELtd/filplus-autocap/internal/chainclient"
	"github.com/CELtd/filplus-autocap/internal/codec"
	"github.com/CELtd/filplus-autocap/internal/config"
	"github.com/CELtd/filplus-autocap/internal/dispatch"
	"github.com/CELtd/filplus-autocap/internal/ingest"
	"github.com/CELtd/filplus-autocap/internal/ledger"
	"github.com/CELtd/filplus-autocap/internal/replenish"
	"github.com/CELtd/filplus-autocap/internal/round"
	"github.com/CELtd/filplus-autocap/internal/signer"
	"github.com/CELtd/filplus-autocap/internal/supervisor"
	"github.com/CELtd/filplus-autocap/internal/txbuilder"
	"github.com/CELtd/filplus-autocap/internal/walletstore"
)

// dataCapActorId and dataCapTransferMethod identify the verified-registry
// allocation message target (§4.1/§4.6); burnActorId is the chain's
// unspendable sink.
const (
	dataCapActorId        = 7
	dataCapTransferMethod = 80475954
	burnActorId           = 99
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	app := &cli.App{
		Name:  "allocator-bot",
		Usage: "run the automated verified-registry DataCap allocator",
		Action: func(c *cli.Context) error {
			return run(c.Context)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("[allocator-bot] fatal: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	wallet, err := walletstore.Load(cfg.WalletFile)
	if err != nil {
		return fmt.Errorf("loading wallet: %w", err)
	}

	id := signer.Identity{
		Mnemonic:       wallet.Mnemonic,
		DerivationPath: wallet.DerivationPath,
		Language:       wallet.MnemonicLang,
	}

	walletAddr, err := address.NewFromString(wallet.Address)
	if err != nil {
		return fmt.Errorf("parsing wallet address %q: %w", wallet.Address, err)
	}

	cc, err := chainclient.Dial(ctx, cfg.RPCURL, cfg.LotusJWT)
	if err != nil {
		return err
	}
	defer cc.Close()

	if err := reportStartupStatus(ctx, cc, walletAddr); err != nil {
		log.Printf("[allocator-bot] WARN: startup status report failed: %v", err)
	}

	rs, err := round.Open(cfg.AuctionFile)
	if err != nil {
		return fmt.Errorf("opening round state: %w", err)
	}

	creditLedger, err := ledger.Open(cfg.RegistryFile)
	if err != nil {
		return fmt.Errorf("opening credit ledger: %w", err)
	}

	ingestor := ingest.New(cc, rs, wallet.Address, cfg.MainnetPrefix, cfg.TestnetPrefix, cfg.Debug)

	disp := dispatch.New(creditLedger, &transferSender{cc: cc, id: id, from: walletAddr, gasLimit: cfg.AllocationGasLimit}, cfg.Debug)

	engine := auction.New(
		rs,
		creditLedger,
		disp,
		&burnSender{cc: cc, id: id, from: walletAddr, gasLimit: cfg.SendNativeGasLimit},
		cfg.IssuancePerRound,
		cfg.BurnFeeBps,
	)

	replenisher, err := replenish.New(&ethChainAdapter{cc: cc}, cfg.AllocatorPrivateKey, cfg.MetaAllocatorContract, cfg.ClientPayloadHex, cfg.ReplenishGasPrice, cfg.ReplenishGasLimit)
	if err != nil {
		return fmt.Errorf("building replenishment client: %w", err)
	}

	sup := supervisor.New(cc, ingestor, engine, replenisher, uint64(cfg.AuctionInterval))

	log.Printf("[allocator-bot] starting supervisor, wallet=%s auctionInterval=%d", wallet.Address, cfg.AuctionInterval)
	return sup.Run(ctx)
}

func reportStartupStatus(ctx context.Context, cc *chainclient.Client, walletAddr address.Address) error {
	balance, err := cc.Balance(ctx, walletAddr)
	if err != nil {
		return err
	}
	dcap, err := cc.DataCapStatus(ctx, walletAddr)
	if err != nil {
		return err
	}
	log.Printf("[allocator-bot] wallet=%s balance=%s datacap=%d", walletAddr, balance, dcap)
	return nil
}

// transferSender adapts txbuilder.Send into dispatch.Sender, targeting the
// DataCap actor's DataCapTransfer method.
type transferSender struct {
	cc       *chainclient.Client
	id       signer.Identity
	from     address.Address
	gasLimit int64
}

func (s *transferSender) SendTransfer(ctx context.Context, params *codec.TransferParams) (cid.Cid, error) {
	to, err := address.NewIDAddress(dataCapActorId)
	if err != nil {
		return cid.Undef, err
	}
	encoded, err := codec.EncodeTransferParams(params)
	if err != nil {
		return cid.Undef, err
	}
	return txbuilder.Send(ctx, s.cc, s.id, txbuilder.Request{
		From:     s.from,
		To:       to,
		Method:   dataCapTransferMethod,
		Params:   encoded,
		Value:    filbig.Zero(),
		GasLimit: s.gasLimit,
	})
}

// burnSender adapts txbuilder.Send into auction.Burner, sending native
// tokens to the chain's unspendable sink actor.
type burnSender struct {
	cc       *chainclient.Client
	id       signer.Identity
	from     address.Address
	gasLimit int64
}

func (s *burnSender) SendBurn(ctx context.Context, amountAtto *big.Int) (string, error) {
	to, err := address.NewIDAddress(burnActorId)
	if err != nil {
		return "", err
	}
	c, err := txbuilder.Send(ctx, s.cc, s.id, txbuilder.Request{
		From:     s.from,
		To:       to,
		Method:   builtin.MethodSend,
		Value:    filbig.NewFromGo(amountAtto),
		GasLimit: s.gasLimit,
	})
	if err != nil {
		return "", err
	}
	return c.String(), nil
}

// ethChainAdapter adapts *chainclient.Client's ethtypes.EthAddress-based
// nonce lookup into the replenishment client's common.Address form.
type ethChainAdapter struct {
	cc *chainclient.Client
}

func (a *ethChainAdapter) EthNonce(ctx context.Context, addr ethcommon.Address) (uint64, error) {
	return a.cc.EthNonce(ctx, ethtypes.EthAddress(addr))
}

func (a *ethChainAdapter) EthChainID(ctx context.Context) (uint64, error) {
	return a.cc.EthChainID(ctx)
}

func (a *ethChainAdapter) EvmSendRaw(ctx context.Context, rawTx []byte) (string, error) {
	return a.cc.EvmSendRaw(ctx, rawTx)
}
