package main

import (
	"fmt"
	"os"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// sedaBech32Prefix is SEDA's account address prefix.
const sedaBech32Prefix = "seda"

func main() {
	setupSDKConfig()

	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupSDKConfig seals the process-wide bech32 prefix once, the way the
// teacher's main.go seals its EVM bech32 prefixes before building the root
// command.
func setupSDKConfig() {
	cfg := sdk.GetConfig()
	cfg.SetBech32PrefixForAccount(sedaBech32Prefix, sedaBech32Prefix+"pub")
	cfg.SetBech32PrefixForValidator(sedaBech32Prefix+"valoper", sedaBech32Prefix+"valoperpub")
	cfg.SetBech32PrefixForConsensusNode(sedaBech32Prefix+"valcons", sedaBech32Prefix+"valconspub")
	cfg.Seal()
}
