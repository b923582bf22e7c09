package keystore

import (
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-common/pkg/utils/tests"
)

// BIP39 test vector mnemonic, the first account of which is well known.
const testMnemonic = "test test test test test test test test test test test junk"

func TestDeriver(t *testing.T) {
	d, err := NewDeriver(testMnemonic, 0)
	require.NoError(t, err)

	first, err := d.Derive(0)
	require.NoError(t, err)
	require.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", first.Address().Hex())

	second, err := d.Derive(1)
	require.NoError(t, err)
	require.Equal(t, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", second.Address().Hex())

	again, err := d.Derive(0)
	require.NoError(t, err)
	require.Equal(t, first.Address(), again.Address())

	other, err := NewDeriver(testMnemonic, 1)
	require.NoError(t, err)
	otherFirst, err := other.Derive(0)
	require.NoError(t, err)
	require.NotEqual(t, first.Address(), otherFirst.Address())
}

func TestDerivationPath(t *testing.T) {
	path, err := accounts.ParseDerivationPath(DerivationPath(3, 7))
	require.NoError(t, err)
	require.Equal(t, accounts.DerivationPath{0x80000000 + 44, 0x80000000 + 60, 0x80000000 + 3, 0, 7}, path)
}

func TestNewDeriver_InvalidMnemonic(t *testing.T) {
	_, err := NewDeriver("not a mnemonic", 0)
	require.ErrorContains(t, err, "invalid mnemonic")
}

func TestKeystore(t *testing.T) {
	ctx := tests.Context(t)
	ks := New()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	account := NewAccount(key)
	ks.Add(account)

	accs, err := ks.Accounts(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{account.Address().Hex()}, accs)

	_, err = ks.Sign(ctx, account.Address().Hex(), nil)
	require.NoError(t, err)

	hash := crypto.Keccak256([]byte("hello"))
	sig, err := ks.Sign(ctx, account.Address().Hex(), hash)
	require.NoError(t, err)
	pub, err := crypto.SigToPub(hash, sig)
	require.NoError(t, err)
	require.Equal(t, account.Address(), crypto.PubkeyToAddress(*pub))

	_, err = ks.Sign(ctx, "0x0000000000000000000000000000000000000001", hash)
	require.ErrorContains(t, err, "no such key")
}

func TestAccountFromHex(t *testing.T) {
	a, err := AccountFromHex("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)
	require.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", a.Address().Hex())

	_, err = AccountFromHex("zz")
	require.Error(t, err)
}
