package keystore

import (
	"fmt"

	"github.com/decred/dcrd/hdkeychain/v3"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
)

// bip32Params are the standard BIP32 mainnet extended key versions (xprv/xpub).
type bip32Params struct{}

func (bip32Params) HDPrivKeyVersion() [4]byte { return [4]byte{0x04, 0x88, 0xad, 0xe4} }
func (bip32Params) HDPubKeyVersion() [4]byte  { return [4]byte{0x04, 0x88, 0xb2, 0x1e} }

// Deriver derives relayer accounts along m/44'/60'/{nodePathIndex}'/0/{index}.
// Distinct nodes sharing a mnemonic use distinct nodePathIndex values.
type Deriver struct {
	master        *hdkeychain.ExtendedKey
	nodePathIndex uint32
}

func NewDeriver(mnemonic string, nodePathIndex uint32) (*Deriver, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, "")
	master, err := hdkeychain.NewMaster(seed, bip32Params{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create master key")
	}
	return &Deriver{master: master, nodePathIndex: nodePathIndex}, nil
}

func DerivationPath(nodePathIndex, index uint32) string {
	return fmt.Sprintf("m/44'/60'/%d'/0/%d", nodePathIndex, index)
}

func (d *Deriver) Derive(index uint32) (*Account, error) {
	path := []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + 60,
		hdkeychain.HardenedKeyStart + d.nodePathIndex,
		0,
		index,
	}
	extKey := d.master
	for _, i := range path {
		child, err := extKey.ChildBIP32Std(i)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive %s", DerivationPath(d.nodePathIndex, index))
		}
		extKey = child
	}

	privKey, err := extKey.SerializedPrivKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize private key")
	}
	key, err := crypto.ToECDSA(privKey)
	if err != nil {
		return nil, errors.Wrap(err, "invalid derived key")
	}
	return NewAccount(key), nil
}
