package model

// ConfigureRequest 设置/更新授权额度
type ConfigureRequest struct {
	Asset     string `json:"asset" binding:"required"` // symbol or token address
	PeriodCap string `json:"period_cap" binding:"required"`
}

// RepayRequest 触发一次代偿执行
type RepayRequest struct {
	User   string `json:"user" binding:"required"`
	Asset  string `json:"asset" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

// RepayResponse 是 RepayReceipt 的外部表示，金额按资产精度格式化
type RepayResponse struct {
	User           string `json:"user"`
	Asset          string `json:"asset"`
	Executor       string `json:"executor"`
	ExecutedAmount string `json:"executed_amount"`
	BotFee         string `json:"bot_fee"`
	DaoFee         string `json:"dao_fee"`
	NetAmount      string `json:"net_amount"`
	Timestamp      int64  `json:"timestamp"`
}

// AuthorizationView 只读的授权状态视图
type AuthorizationView struct {
	User            string `json:"user"`
	Asset           string `json:"asset"`
	PeriodCap       string `json:"period_cap"`
	PeriodStart     int64  `json:"period_start"`
	SpentThisPeriod string `json:"spent_this_period"`
	Available       string `json:"available_this_period"`
	Authorized      bool   `json:"authorized"`
}

// SetFeesRequest Admin 更新费率
type SetFeesRequest struct {
	BotFeeBps       uint64 `json:"bot_fee_bps"`
	DaoFeeBps       uint64 `json:"dao_fee_bps"`
	DaoFeeRecipient string `json:"dao_fee_recipient" binding:"required"`
}

// TransferAdminRequest 两段式管理员转移的提议
type TransferAdminRequest struct {
	NewAdmin string `json:"new_admin" binding:"required"`
}
