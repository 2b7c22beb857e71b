package model

import (
	"time"
)

type EventKind string

const (
	EventConfigurationChanged EventKind = "configuration-changed"
	EventRepayExecuted        EventKind = "repay-executed"
	EventFeeParametersChanged EventKind = "fee-parameters-changed"
	EventPaused               EventKind = "paused"
	EventUnpaused             EventKind = "unpaused"
	EventAdminTransferred     EventKind = "admin-transferred"
	EventUpgraded             EventKind = "upgraded"
)

// Event 代表一条可观测事件记录
type Event struct {
	ID   string    `json:"id"`   // 唯一事件 ID (UUID)
	Kind EventKind `json:"kind"` // 事件类型

	User     string `json:"user,omitempty"`
	Asset    string `json:"asset,omitempty"`
	Executor string `json:"executor,omitempty"`

	// 金额一律是十进制字符串 (base units)，避免 JSON 数字精度丢失
	Amount string `json:"amount,omitempty"`
	BotFee string `json:"bot_fee,omitempty"`
	DaoFee string `json:"dao_fee,omitempty"`

	// 业务上下文 (旧/新费率、旧/新额度、版本号等)
	Context map[string]interface{} `json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
