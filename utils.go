package relayer

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
)

func GetEventTopicHash(eventSignature string) string {
	return hex.EncodeToString(crypto.Keccak256([]byte(eventSignature)))
}

// ParseChainID accepts a decimal or 0x-prefixed hex chain id.
func ParseChainID(id string) (uint64, error) {
	var idNum *big.Int
	if strings.HasPrefix(id, "0x") {
		parsed, ok := new(big.Int).SetString(id[2:], 16)
		if !ok {
			return 0, fmt.Errorf("couldn't parse hex chain id %s", id)
		}
		idNum = parsed
	} else {
		parsed, ok := new(big.Int).SetString(id, 10)
		if !ok {
			return 0, fmt.Errorf("couldn't parse numeric chain id %s", id)
		}
		idNum = parsed
	}
	if !idNum.IsUint64() || idNum.Sign() == 0 {
		return 0, fmt.Errorf("chain id out of range: %s", id)
	}
	return idNum.Uint64(), nil
}

// AddressKey is the map key used for relayer lookups.
func AddressKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// WeiToEther converts wei to ether
func WeiToEther(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether)).Float64()
	return f
}
