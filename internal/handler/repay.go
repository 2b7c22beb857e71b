package handler

import (
	"net/http"

	"github.com/Baptiste-Yucca/rent2repay/internal/middleware"
	"github.com/Baptiste-Yucca/rent2repay/internal/model"
	"github.com/Baptiste-Yucca/rent2repay/internal/pkg/apperrors"
	"github.com/Baptiste-Yucca/rent2repay/internal/service"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

type RepayHandler struct {
	engine *service.Engine
	assets *service.AssetBook
}

func NewRepayHandler(engine *service.Engine, assets *service.AssetBook) *RepayHandler {
	return &RepayHandler{engine: engine, assets: assets}
}

// Trigger 任意 executor 触发一次代偿。请求金额可以大于剩余额度，
// 引擎会按剩余额度收缩执行。
func (h *RepayHandler) Trigger(c *gin.Context) {
	callerVal, exists := c.Get(middleware.ContextCallerKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing executor identity"})
		return
	}
	executor := callerVal.(common.Address)

	var req model.RepayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !common.IsHexAddress(req.User) {
		c.Error(apperrors.NewInvalidAmount("malformed user address"))
		return
	}
	user := common.HexToAddress(req.User)

	asset, ok := h.assets.Resolve(req.Asset)
	if !ok {
		c.Error(apperrors.New(apperrors.ErrNotFound, "unsupported asset: "+req.Asset, nil))
		return
	}
	amount, err := asset.ParseAmount(req.Amount)
	if err != nil {
		c.Error(apperrors.NewInvalidAmount(err.Error()))
		return
	}

	receipt, err := h.engine.TriggerRepay(c.Request.Context(), executor, user, asset.Address, amount)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, model.RepayResponse{
		User:           receipt.User.Hex(),
		Asset:          asset.Symbol,
		Executor:       receipt.Executor.Hex(),
		ExecutedAmount: asset.FormatAmount(receipt.ExecutedAmount),
		BotFee:         asset.FormatAmount(receipt.BotFee),
		DaoFee:         asset.FormatAmount(receipt.DaoFee),
		NetAmount:      asset.FormatAmount(receipt.NetAmount),
		Timestamp:      receipt.Timestamp,
	})
}
