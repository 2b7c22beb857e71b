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

type AdminHandler struct {
	ctrl *service.Controller
}

func NewAdminHandler(ctrl *service.Controller) *AdminHandler {
	return &AdminHandler{ctrl: ctrl}
}

func (h *AdminHandler) SetFees(c *gin.Context) {
	caller := callerFromContext(c)

	var req model.SetFeesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !common.IsHexAddress(req.DaoFeeRecipient) {
		c.Error(apperrors.NewInvalidConfig("malformed dao fee recipient address"))
		return
	}

	err := h.ctrl.SetFeeParameters(caller, model.FeeParameters{
		BotFeeBps:       req.BotFeeBps,
		DaoFeeBps:       req.DaoFeeBps,
		DaoFeeRecipient: common.HexToAddress(req.DaoFeeRecipient),
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.ctrl.FeeParams())
}

func (h *AdminHandler) Pause(c *gin.Context) {
	if err := h.ctrl.Pause(callerFromContext(c)); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.ctrl.State())
}

func (h *AdminHandler) Unpause(c *gin.Context) {
	if err := h.ctrl.Unpause(callerFromContext(c)); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.ctrl.State())
}

func (h *AdminHandler) TransferAdmin(c *gin.Context) {
	var req model.TransferAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !common.IsHexAddress(req.NewAdmin) {
		c.Error(apperrors.NewInvalidConfig("malformed new admin address"))
		return
	}
	if err := h.ctrl.TransferAdmin(callerFromContext(c), common.HexToAddress(req.NewAdmin)); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.ctrl.State())
}

// AcceptAdmin 由被提名者调用，身份来自 X-User-Address，不走 admin key。
func (h *AdminHandler) AcceptAdmin(c *gin.Context) {
	caller, ok := userFromHeader(c)
	if !ok {
		return
	}
	if err := h.ctrl.AcceptAdmin(caller); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.ctrl.State())
}

func (h *AdminHandler) Upgrade(c *gin.Context) {
	var req struct {
		Logic string `json:"logic"`
	}
	// body 可选：默认升级到当前默认逻辑的新实例
	_ = c.ShouldBindJSON(&req)

	logic, err := service.LogicByName(req.Logic)
	if err != nil {
		c.Error(err)
		return
	}
	if err := h.ctrl.Upgrade(callerFromContext(c), logic); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.ctrl.State())
}

func (h *AdminHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state": h.ctrl.State(),
		"fees":  h.ctrl.FeeParams(),
	})
}

func callerFromContext(c *gin.Context) common.Address {
	if v, ok := c.Get(middleware.ContextCallerKey); ok {
		if addr, ok := v.(common.Address); ok {
			return addr
		}
	}
	return common.Address{}
}
