package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// UserAuthorization 是 (user, asset) 维度的授权记录。
// PeriodCap == 0 表示未授权（撤销后记录保留用于审计）。
type UserAuthorization struct {
	User            common.Address `json:"user"`
	Asset           common.Address `json:"asset"`
	PeriodCap       *big.Int       `json:"period_cap"`        // 每周期最大可支出额度 (base units)
	PeriodStart     int64          `json:"period_start"`      // 当前记账周期起点 (unix seconds)
	SpentThisPeriod *big.Int       `json:"spent_this_period"` // 本周期已支出
}

// Key returns the registry key for a (user, asset) pair.
func Key(user, asset common.Address) string {
	return user.Hex() + ":" + asset.Hex()
}

// Authorized reports whether the record carries a standing authorization.
func (a *UserAuthorization) Authorized() bool {
	return a != nil && a.PeriodCap != nil && a.PeriodCap.Sign() > 0
}

// Clone returns a deep copy so store internals never leak mutable big.Ints.
func (a *UserAuthorization) Clone() *UserAuthorization {
	if a == nil {
		return nil
	}
	cp := *a
	if a.PeriodCap != nil {
		cp.PeriodCap = new(big.Int).Set(a.PeriodCap)
	}
	if a.SpentThisPeriod != nil {
		cp.SpentThisPeriod = new(big.Int).Set(a.SpentThisPeriod)
	}
	return &cp
}
