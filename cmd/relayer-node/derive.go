package main

import (
	"fmt"
	"os"

	"github.com/bcnmy/bundler-sub000/keystore"
)

type Derive struct {
	Count         uint32 `name:"count" short:"n" default:"10" help:"Number of relayers to print."`
	NodePathIndex uint32 `name:"node-path-index" default:"0" help:"Account branch of the derivation path."`
}

func (d *Derive) Run(c *CLIContext) error {
	mnemonic := os.Getenv(envMnemonic)
	if mnemonic == "" {
		return fmt.Errorf("%s is not set", envMnemonic)
	}
	deriver, err := keystore.NewDeriver(mnemonic, d.NodePathIndex)
	if err != nil {
		return err
	}
	for i := uint32(0); i < d.Count; i++ {
		account, err := deriver.Derive(i)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s\t%s\n", keystore.DerivationPath(d.NodePathIndex, i), account.Address())
	}
	return nil
}
