package keystore

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Account is a relayer signing handle. The private key never leaves it.
type Account struct {
	address common.Address
	key     *ecdsa.PrivateKey
}

func NewAccount(key *ecdsa.PrivateKey) *Account {
	return &Account{
		address: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
	}
}

// AccountFromHex loads an account from a hex encoded private key, with or
// without 0x prefix.
func AccountFromHex(hexKey string) (*Account, error) {
	if len(hexKey) >= 2 && hexKey[:2] == "0x" {
		hexKey = hexKey[2:]
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, errors.Wrap(err, "invalid private key")
	}
	return NewAccount(key), nil
}

func (a *Account) Address() common.Address {
	return a.address
}

func (a *Account) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), a.key)
}

// SignHash signs a 32 byte digest.
func (a *Account) SignHash(hash []byte) ([]byte, error) {
	return crypto.Sign(hash, a.key)
}
