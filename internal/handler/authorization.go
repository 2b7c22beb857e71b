package handler

import (
	"net/http"
	"strings"

	"github.com/Baptiste-Yucca/rent2repay/internal/model"
	"github.com/Baptiste-Yucca/rent2repay/internal/pkg/apperrors"
	"github.com/Baptiste-Yucca/rent2repay/internal/service"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// HeaderUserAddress 声明本次调用的用户身份。钱包签名校验是外层网关的
// 职责（非目标）；核心层依然强制 caller == user。
const HeaderUserAddress = "X-User-Address"

type AuthorizationHandler struct {
	registry *service.Registry
	window   *service.WindowTracker
	assets   *service.AssetBook
}

func NewAuthorizationHandler(registry *service.Registry, window *service.WindowTracker, assets *service.AssetBook) *AuthorizationHandler {
	return &AuthorizationHandler{registry: registry, window: window, assets: assets}
}

func (h *AuthorizationHandler) Configure(c *gin.Context) {
	user, ok := userFromHeader(c)
	if !ok {
		return
	}

	var req model.ConfigureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	asset, ok := h.assets.Resolve(req.Asset)
	if !ok {
		c.Error(apperrors.New(apperrors.ErrNotFound, "unsupported asset: "+req.Asset, nil))
		return
	}
	cap, err := asset.ParseAmount(req.PeriodCap)
	if err != nil {
		c.Error(apperrors.NewInvalidAmount(err.Error()))
		return
	}

	if err := h.registry.Configure(c.Request.Context(), user, user, asset.Address, cap); err != nil {
		c.Error(err)
		return
	}

	h.renderView(c, user, asset)
}

func (h *AuthorizationHandler) Revoke(c *gin.Context) {
	user, ok := userFromHeader(c)
	if !ok {
		return
	}

	asset, found := h.assets.Resolve(c.Param("asset"))
	if !found {
		c.Error(apperrors.New(apperrors.ErrNotFound, "unsupported asset", nil))
		return
	}

	if err := h.registry.Revoke(c.Request.Context(), user, user, asset.Address); err != nil {
		c.Error(err)
		return
	}

	h.renderView(c, user, asset)
}

// Get 对外暴露完整授权元组与可用额度，只读。
func (h *AuthorizationHandler) Get(c *gin.Context) {
	raw := c.Param("user")
	if !common.IsHexAddress(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed user address"})
		return
	}
	user := common.HexToAddress(raw)

	asset, found := h.assets.Resolve(c.Param("asset"))
	if !found {
		c.Error(apperrors.New(apperrors.ErrNotFound, "unsupported asset", nil))
		return
	}

	h.renderView(c, user, asset)
}

func (h *AuthorizationHandler) renderView(c *gin.Context, user common.Address, asset model.Asset) {
	view, err := h.view(c, user, asset)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// view 渲染完整授权元组。没有记录时返回全零视图；存储错误向上抛，
// 不允许把一次读失败伪装成「无授权」。
func (h *AuthorizationHandler) view(c *gin.Context, user common.Address, asset model.Asset) (*model.AuthorizationView, error) {
	view := &model.AuthorizationView{
		User:            user.Hex(),
		Asset:           asset.Address.Hex(),
		PeriodCap:       "0",
		SpentThisPeriod: "0",
		Available:       "0",
	}
	rec, err := h.registry.Get(c.Request.Context(), user, asset.Address)
	if err != nil {
		if apperrors.TypeOf(err) == apperrors.ErrNotFound {
			return view, nil
		}
		return nil, err
	}
	available, err := h.registry.Available(c.Request.Context(), user, asset.Address)
	if err != nil {
		return nil, err
	}

	view.PeriodCap = rec.PeriodCap.String()
	view.PeriodStart = rec.PeriodStart
	view.SpentThisPeriod = rec.SpentThisPeriod.String()
	view.Authorized = rec.Authorized()
	if available != nil {
		view.Available = available.String()
	}
	return view, nil
}

func userFromHeader(c *gin.Context) (common.Address, bool) {
	raw := strings.TrimSpace(c.GetHeader(HeaderUserAddress))
	if !common.IsHexAddress(raw) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed " + HeaderUserAddress})
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}
