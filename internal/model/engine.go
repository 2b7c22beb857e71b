package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FeeParameters 费率配置（单例，仅 Admin 可写）
type FeeParameters struct {
	BotFeeBps       uint64         `json:"bot_fee_bps"` // basis points, 1/10000
	DaoFeeBps       uint64         `json:"dao_fee_bps"`
	DaoFeeRecipient common.Address `json:"dao_fee_recipient"`
}

// EngineState 引擎全局状态（单例）
type EngineState struct {
	Admin        common.Address `json:"admin"`
	PendingAdmin common.Address `json:"pending_admin,omitempty"`
	Paused       bool           `json:"paused"`
	Version      uint64         `json:"version"`
}

// FeeSplit is the result of applying FeeParameters to a gross amount.
// Bot + Dao + Net always equals the gross amount exactly.
type FeeSplit struct {
	Bot *big.Int `json:"bot_fee"`
	Dao *big.Int `json:"dao_fee"`
	Net *big.Int `json:"net_amount"`
}

// RepayReceipt 一次成功执行的回执
type RepayReceipt struct {
	User           common.Address `json:"user"`
	Asset          common.Address `json:"asset"`
	Executor       common.Address `json:"executor"`
	ExecutedAmount *big.Int       `json:"executed_amount"`
	BotFee         *big.Int       `json:"bot_fee"`
	DaoFee         *big.Int       `json:"dao_fee"`
	NetAmount      *big.Int       `json:"net_amount"`
	Timestamp      int64          `json:"timestamp"`
}
