package model

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Asset 描述一个受支持的资产：代币地址、精度以及偿债目标地址
type Asset struct {
	Symbol   string         `json:"symbol"`
	Address  common.Address `json:"address"`
	Decimals int32          `json:"decimals"`
	DebtSink common.Address `json:"debt_sink"` // net 部分的偿还去向
}

// ParseAmount converts a human decimal amount ("12.5") into base units for
// the asset. Negative, empty, or sub-resolution amounts are rejected.
func (a *Asset) ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("malformed amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount must not be negative")
	}
	scaled := d.Shift(a.Decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %q exceeds %d decimal places", s, a.Decimals)
	}
	return scaled.BigInt(), nil
}

// FormatAmount renders base units back into a human decimal string.
func (a *Asset) FormatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -a.Decimals).String()
}
