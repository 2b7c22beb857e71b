package service

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/Baptiste-Yucca/rent2repay/internal/model"
	"github.com/Baptiste-Yucca/rent2repay/internal/pkg/apperrors"
	"github.com/Baptiste-Yucca/rent2repay/internal/pkg/logger"
	"github.com/Baptiste-Yucca/rent2repay/internal/pkg/metrics"
	"github.com/Baptiste-Yucca/rent2repay/internal/transfer"
	"github.com/ethereum/go-ethereum/common"
)

// RepayLogic 是可升级的结算步骤：给定费用拆分结果，按固定顺序搬运价值。
// 引擎状态（授权记录、费率、版本）存放在逻辑之外，升级只替换这层行为。
type RepayLogic interface {
	Name() string
	Settle(ctx context.Context, t transfer.Transferor, asset model.Asset, daoRecipient common.Address, r *model.RepayReceipt) error
}

// Engine 结算引擎：校验授权、预留额度、拆分费用、搬运价值。
type Engine struct {
	ctrl       *Controller
	registry   *Registry
	transferor transfer.Transferor
	assets     *AssetBook
	events     *EventService

	mu    sync.RWMutex
	logic RepayLogic

	nowFn func() time.Time
}

func NewEngine(ctrl *Controller, registry *Registry, transferor transfer.Transferor, assets *AssetBook, events *EventService) *Engine {
	e := &Engine{
		ctrl:       ctrl,
		registry:   registry,
		transferor: transferor,
		assets:     assets,
		events:     events,
		logic:      RepayLogicV1{},
		nowFn:      time.Now,
	}
	ctrl.AttachEngine(e)
	return e
}

func (e *Engine) setLogic(l RepayLogic) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logic = l
}

func (e *Engine) currentLogic() RepayLogic {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.logic
}

// TriggerRepay 任何地址都可以触发；executor 只决定谁收 bot fee，
// 授权校验完全基于用户自己的记录。请求超出剩余额度时按剩余额度执行，
// 让 bot 可以安全地一次性请求「尽可能多」。
func (e *Engine) TriggerRepay(ctx context.Context, executor, user, assetAddr common.Address, requested *big.Int) (*model.RepayReceipt, error) {
	if e.ctrl.Paused() {
		metrics.RepayRejects.WithLabelValues(string(apperrors.ErrEnginePaused)).Inc()
		return nil, apperrors.New(apperrors.ErrEnginePaused, "engine is paused", nil)
	}
	if requested == nil || requested.Sign() < 0 {
		return nil, apperrors.NewInvalidAmount("requested amount must be non-negative")
	}

	asset, ok := e.assets.ByAddress(assetAddr)
	if !ok {
		return nil, apperrors.New(apperrors.ErrNotFound, "unsupported asset", nil)
	}

	authorized, err := e.registry.IsAuthorized(ctx, user, assetAddr)
	if err != nil {
		return nil, err
	}
	if !authorized {
		metrics.RepayRejects.WithLabelValues(string(apperrors.ErrNotAuthorized)).Inc()
		return nil, apperrors.NewNotAuthorized("no active authorization for user/asset")
	}

	available, err := e.registry.Available(ctx, user, assetAddr)
	if err != nil {
		return nil, err
	}
	executed := requested
	if available.Cmp(requested) < 0 {
		executed = available
	}
	if executed.Sign() == 0 {
		metrics.RepayRejects.WithLabelValues(string(apperrors.ErrNothingToExecute)).Inc()
		return nil, apperrors.New(apperrors.ErrNothingToExecute, "nothing executable this period", nil)
	}
	executed = new(big.Int).Set(executed)

	// Reserve 是唯一的串行化点：并发触发者在这里重新原子校验，
	// 输掉竞争的一方拿到 CapExceeded，不产生任何价值移动。
	if err := e.registry.Reserve(ctx, user, assetAddr, executed); err != nil {
		metrics.RepayRejects.WithLabelValues(string(apperrors.TypeOf(err))).Inc()
		return nil, err
	}

	params := e.ctrl.FeeParams()
	split, err := SplitFees(params, executed)
	if err != nil {
		_ = e.registry.Release(ctx, user, assetAddr, executed)
		return nil, err
	}

	receipt := &model.RepayReceipt{
		User:           user,
		Asset:          assetAddr,
		Executor:       executor,
		ExecutedAmount: executed,
		BotFee:         split.Bot,
		DaoFee:         split.Dao,
		NetAmount:      split.Net,
		Timestamp:      e.nowFn().Unix(),
	}

	if err := e.currentLogic().Settle(ctx, e.transferor, asset, params.DaoFeeRecipient, receipt); err != nil {
		// 任一笔转账失败：整体失败，预留回滚，不留下部分记账
		if relErr := e.registry.Release(ctx, user, assetAddr, executed); relErr != nil {
			logger.Error("failed to roll back reservation",
				"user", user.Hex(), "asset", assetAddr.Hex(), "error", relErr)
		}
		metrics.RepaysTotal.WithLabelValues("failed", asset.Symbol).Inc()
		return nil, apperrors.Wrap(err)
	}

	metrics.RepaysTotal.WithLabelValues("executed", asset.Symbol).Inc()
	if e.events != nil {
		e.events.Emit(&model.Event{
			Kind:     model.EventRepayExecuted,
			User:     user.Hex(),
			Asset:    assetAddr.Hex(),
			Executor: executor.Hex(),
			Amount:   executed.String(),
			BotFee:   split.Bot.String(),
			DaoFee:   split.Dao.String(),
			Context: map[string]interface{}{
				"net_amount": split.Net.String(),
				"timestamp":  receipt.Timestamp,
			},
		})
	}
	return receipt, nil
}

// RepayLogicV1 固定顺序结算：净额偿债，bot fee 付给触发者，dao fee 付给国库。
// 三条支路作为一个批次提交，任一支路失败则整体失败，不留下部分转账。
type RepayLogicV1 struct{}

func (RepayLogicV1) Name() string { return "v1" }

func (RepayLogicV1) Settle(ctx context.Context, t transfer.Transferor, asset model.Asset, daoRecipient common.Address, r *model.RepayReceipt) error {
	return t.TransferBatch(ctx, asset.Address, r.User, []transfer.Leg{
		{To: asset.DebtSink, Amount: r.NetAmount},
		{To: r.Executor, Amount: r.BotFee},
		{To: daoRecipient, Amount: r.DaoFee},
	})
}

// LogicByName 解析升级入口提交的逻辑名
func LogicByName(name string) (RepayLogic, error) {
	switch name {
	case "", "v1":
		return RepayLogicV1{}, nil
	default:
		return nil, apperrors.NewInvalidConfig("unknown settlement logic: " + name)
	}
}
