// Package config loads the bot's runtime configuration from the environment.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/CELtd/filplus-autocap/internal/apperr"
)

// Config holds every external-interface setting named in the configuration
// data model: the chain RPC endpoint, file paths for durable state, and the
// EVM-side replenishment identity.
type Config struct {
	RPCURL       string
	LotusJWT     string // optional; empty if the endpoint needs no bearer auth
	WalletFile   string
	AuctionFile  string
	RegistryFile string

	AllocatorAddressHex   string
	AllocatorPrivateKey   string
	MetaAllocatorContract string

	// MainnetPrefix/TestnetPrefix are the address-prefix pair the Bid
	// Ingestor accepts as equivalent to the bot's own wallet address.
	MainnetPrefix string
	TestnetPrefix string

	AuctionInterval    int
	IssuancePerRound   uint64
	BurnFeeBps         int // BurnFee expressed in basis points of total stake (5000 = 0.50)
	SendNativeGasLimit int64
	AllocationGasLimit int64

	// ReplenishGasPrice/ReplenishGasLimit are the fixed constants §4.7
	// requires for the manually assembled EVM replenishment transaction.
	ReplenishGasPrice int64
	ReplenishGasLimit int64

	// ClientPayloadHex is the hex-encoded clientPayload argument to
	// addVerifiedClient: the canonical byte encoding of the bot wallet
	// identity the meta-allocator contract expects.
	ClientPayloadHex string

	Debug bool
}

// Load reads configuration from the environment. Required keys return
// apperr.ConfigMissing; the caller is expected to treat that as fatal.
func Load() (*Config, error) {
	cfg := &Config{
		MainnetPrefix:      envOrDefault("ALLOCATOR_MAINNET_PREFIX", "f1"),
		TestnetPrefix:      envOrDefault("ALLOCATOR_TESTNET_PREFIX", "t1"),
		AuctionInterval:    envInt("AUCTION_INTERVAL_BLOCKS", 15),
		IssuancePerRound:   uint64(envInt("ISSUANCE_PER_ROUND", 1280)),
		BurnFeeBps:         envInt("BURN_FEE_BPS", 5000),
		SendNativeGasLimit: int64(envInt("SEND_NATIVE_GAS_LIMIT", 750_000)),
		AllocationGasLimit: int64(envInt("ALLOCATION_GAS_LIMIT", 20_000_000)),
		ReplenishGasPrice:  int64(envInt("REPLENISH_GAS_PRICE_WEI", 1_000_000_000)),
		ReplenishGasLimit:  int64(envInt("REPLENISH_GAS_LIMIT", 200_000)),
		ClientPayloadHex:   os.Getenv("ALLOCATOR_CLIENT_PAYLOAD_HEX"),
		Debug:              os.Getenv("ALLOCATOR_DEBUG") == "1",
	}

	var err error
	if cfg.RPCURL, err = required("RPC_URL"); err != nil {
		return nil, err
	}
	if cfg.WalletFile, err = required("WALLET_FILE"); err != nil {
		return nil, err
	}
	if cfg.AuctionFile, err = required("AUCTION_FILE"); err != nil {
		return nil, err
	}
	if cfg.RegistryFile, err = required("REGISTRY_FILE"); err != nil {
		return nil, err
	}
	if cfg.AllocatorAddressHex, err = required("ALLOCATOR_ADDRESS_HEX"); err != nil {
		return nil, err
	}
	if cfg.AllocatorPrivateKey, err = required("ALLOCATOR_PRIVATE_KEY"); err != nil {
		return nil, err
	}
	if cfg.MetaAllocatorContract, err = required("METALLOCATOR_CONTRACT_ADDRESS"); err != nil {
		return nil, err
	}

	cfg.LotusJWT = os.Getenv("LOTUS_JWT")

	return cfg, nil
}

func required(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", &apperr.ConfigMissing{Key: key}
	}
	return v, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}
