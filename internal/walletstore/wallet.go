// Package walletstore loads the bot's wallet identity from the read-only
// JSON file an external collaborator is responsible for generating and
// persisting. This package never creates or mutates that file.
package walletstore

import (
	"encoding/json"
	"fmt"
	"os"
)

// Wallet is the read-only identity record the core signs with.
type Wallet struct {
	Mnemonic        string `json:"mnemonic"`
	Address         string `json:"address"`
	DerivationPath  string `json:"derivation_path"`
	MnemonicLang    string `json:"language"`
}

// Load reads and parses the wallet file at path.
func Load(path string) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading wallet file %s: %w", path, err)
	}

	var w Wallet
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parsing wallet file %s: %w", path, err)
	}
	if w.Mnemonic == "" || w.Address == "" || w.DerivationPath == "" {
		return nil, fmt.Errorf("wallet file %s is missing required fields", path)
	}
	if w.MnemonicLang == "" {
		w.MnemonicLang = "english"
	}
	return &w, nil
}
