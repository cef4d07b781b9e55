// Package signer derives a deterministic secp256k1 key from a BIP39
// mnemonic and a BIP32 derivation path, and produces detached signatures
// over canonical-form chain messages. The signer holds no state between
// calls: every Sign call re-derives the key from its inputs.
package signer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/filecoin-project/go-state-types/crypto"
	"github.com/filecoin-project/lotus/lib/sigs"
	_ "github.com/filecoin-project/lotus/lib/sigs/secp" // registers the secp256k1 signer
	"github.com/tyler-smith/go-bip39"
	"github.com/tyler-smith/go-bip39/wordlists"

	"github.com/CELtd/filplus-autocap/internal/apperr"
)

// Identity is a (mnemonic, derivation path, language) triple. It carries no
// derived key material; Sign derives fresh key material on every call.
type Identity struct {
	Mnemonic       string
	DerivationPath string
	Language       string
}

// Signature pairs signature bytes with the signing scheme that produced
// them, matching the wire distinction between secp256k1 and BLS.
type Signature struct {
	Type crypto.SigType
	Data []byte
}

// Sign derives the secp256k1 private key for id and signs msg, returning a
// detached secp256k1 signature.
func Sign(id Identity, msg []byte) (*Signature, error) {
	priv, err := derivePrivateKey(id)
	if err != nil {
		return nil, &apperr.SignerFailure{Op: "derive", Err: err}
	}

	sig, err := sigs.Sign(crypto.SigTypeSecp256k1, priv, msg)
	if err != nil {
		return nil, &apperr.SignerFailure{Op: "sign", Err: err}
	}
	return &Signature{Type: sig.Type, Data: sig.Data}, nil
}

// PrivateKeyBytes exposes the raw 32-byte secp256k1 private key for id, for
// callers that need to sign non-Filecoin message forms directly.
func PrivateKeyBytes(id Identity) ([]byte, error) {
	priv, err := derivePrivateKey(id)
	if err != nil {
		return nil, &apperr.SignerFailure{Op: "derive", Err: err}
	}
	return priv, nil
}

func derivePrivateKey(id Identity) ([]byte, error) {
	if err := setWordlist(id.Language); err != nil {
		return nil, err
	}
	if !bip39.IsMnemonicValid(id.Mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}

	seed := bip39.NewSeed(id.Mnemonic, "")

	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("deriving master key: %w", err)
	}

	key, err := derivePath(master, id.DerivationPath)
	if err != nil {
		return nil, fmt.Errorf("deriving path %s: %w", id.DerivationPath, err)
	}

	ecPriv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("extracting ec private key: %w", err)
	}
	return ecPriv.Serialize(), nil
}

// derivePath walks a BIP32 path of the form m/44'/461'/0/0/0, honoring the
// hardened-derivation suffix.
func derivePath(key *hdkeychain.ExtendedKey, path string) (*hdkeychain.ExtendedKey, error) {
	path = strings.TrimPrefix(path, "m/")
	if path == "" {
		return key, nil
	}

	cur := key
	for _, component := range strings.Split(path, "/") {
		if component == "" {
			continue
		}
		hardened := strings.HasSuffix(component, "'")
		component = strings.TrimSuffix(component, "'")

		index, err := strconv.ParseUint(component, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid path component %q: %w", component, err)
		}

		childIndex := uint32(index)
		if hardened {
			childIndex = hdkeychain.HardenedKeyStart + uint32(index)
		}

		child, err := cur.Derive(childIndex)
		if err != nil {
			return nil, fmt.Errorf("deriving child %d: %w", index, err)
		}
		cur = child
	}
	return cur, nil
}

func setWordlist(lang string) error {
	switch strings.ToLower(lang) {
	case "", "english":
		bip39.SetWordList(wordlists.English)
	case "japanese":
		bip39.SetWordList(wordlists.Japanese)
	case "spanish":
		bip39.SetWordList(wordlists.Spanish)
	case "french":
		bip39.SetWordList(wordlists.French)
	case "italian":
		bip39.SetWordList(wordlists.Italian)
	case "korean":
		bip39.SetWordList(wordlists.Korean)
	case "chinese_simplified":
		bip39.SetWordList(wordlists.ChineseSimplified)
	case "chinese_traditional":
		bip39.SetWordList(wordlists.ChineseTraditional)
	default:
		return fmt.Errorf("unsupported mnemonic language %q", lang)
	}
	return nil
}
