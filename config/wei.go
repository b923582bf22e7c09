package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

// Wei is an amount in wei, written in TOML as an integer string with an
// optional unit suffix: "wei", "gwei" or "ether".
type Wei big.Int

func NewWei(v *big.Int) *Wei {
	return (*Wei)(new(big.Int).Set(v))
}

func MustParseWei(s string) *Wei {
	var w Wei
	if err := w.UnmarshalText([]byte(s)); err != nil {
		panic(err)
	}
	return &w
}

// Int returns a copy of the amount.
func (w *Wei) Int() *big.Int {
	if w == nil {
		return nil
	}
	return new(big.Int).Set((*big.Int)(w))
}

func (w *Wei) String() string {
	return (*big.Int)(w).String()
}

func (w Wei) MarshalText() ([]byte, error) {
	return []byte((*big.Int)(&w).String()), nil
}

func (w *Wei) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	unit := big.NewInt(1)
	for _, u := range []struct {
		suffix string
		mult   int64
	}{
		{"gwei", params.GWei},
		{"ether", params.Ether},
		{"wei", params.Wei},
	} {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			unit = big.NewInt(u.mult)
			break
		}
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("invalid wei amount %q", string(text))
	}
	if v.Sign() < 0 {
		return fmt.Errorf("negative wei amount %q", string(text))
	}
	*w = Wei(*v.Mul(v, unit))
	return nil
}
