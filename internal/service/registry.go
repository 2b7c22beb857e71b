package service

import (
	"context"
	"math/big"
	"time"

	"github.com/Baptiste-Yucca/rent2repay/internal/model"
	"github.com/Baptiste-Yucca/rent2repay/internal/pkg/apperrors"
	"github.com/Baptiste-Yucca/rent2repay/internal/pkg/metrics"
	"github.com/ethereum/go-ethereum/common"
)

// Registry 授权注册表：用户自助设置/撤销额度，引擎通过 Reserve 记账。
type Registry struct {
	store  AuthStore
	window *WindowTracker
	events *EventService
	nowFn  func() time.Time
}

func NewRegistry(store AuthStore, window *WindowTracker, events *EventService) *Registry {
	return &Registry{
		store:  store,
		window: window,
		events: events,
		nowFn:  time.Now,
	}
}

// Configure 设置 (user, asset) 的周期额度。仅限用户本人操作。
// cap 为 0 即撤销。记录为新建或已过期时，窗口起点重置为当前时间。
func (r *Registry) Configure(ctx context.Context, caller, user, asset common.Address, cap *big.Int) error {
	if caller != user {
		return apperrors.NewUnauthorized("authorizations are self-service only")
	}
	if cap == nil || cap.Sign() < 0 {
		return apperrors.NewInvalidAmount("period cap must be a non-negative integer")
	}

	now := r.nowFn().Unix()
	old, err := r.store.Get(ctx, user, asset)
	if err != nil {
		return apperrors.Wrap(err)
	}

	oldCap := new(big.Int)
	rec := &model.UserAuthorization{
		User:            user,
		Asset:           asset,
		PeriodCap:       new(big.Int).Set(cap),
		PeriodStart:     now,
		SpentThisPeriod: new(big.Int),
	}
	if old != nil {
		if old.PeriodCap != nil {
			oldCap.Set(old.PeriodCap)
		}
		if !r.window.Stale(old.PeriodStart, now) {
			// 窗口仍然有效：保留起点与已支出，仅更新额度
			rec.PeriodStart = old.PeriodStart
			rec.SpentThisPeriod = new(big.Int).Set(old.SpentThisPeriod)
		}
	}

	if err := r.store.Put(ctx, rec); err != nil {
		return apperrors.Wrap(err)
	}

	action := "configure"
	if cap.Sign() == 0 {
		action = "revoke"
	}
	metrics.AuthorizationsConfigured.WithLabelValues(asset.Hex(), action).Inc()
	if r.events != nil {
		r.events.Emit(&model.Event{
			Kind:  model.EventConfigurationChanged,
			User:  user.Hex(),
			Asset: asset.Hex(),
			Context: map[string]interface{}{
				"old_cap": oldCap.String(),
				"new_cap": cap.String(),
			},
		})
	}
	return nil
}

// Revoke 等价于 Configure(cap=0)，幂等。
func (r *Registry) Revoke(ctx context.Context, caller, user, asset common.Address) error {
	return r.Configure(ctx, caller, user, asset, new(big.Int))
}

func (r *Registry) IsAuthorized(ctx context.Context, user, asset common.Address) (bool, error) {
	rec, err := r.store.Get(ctx, user, asset)
	if err != nil {
		return false, apperrors.Wrap(err)
	}
	return rec.Authorized(), nil
}

// Available 本周期剩余额度。纯读：过期窗口按已重置计算，不产生写入。
func (r *Registry) Available(ctx context.Context, user, asset common.Address) (*big.Int, error) {
	rec, err := r.store.Get(ctx, user, asset)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}
	if rec == nil {
		return new(big.Int), nil
	}
	return r.window.Available(rec, r.nowFn().Unix()), nil
}

// Get returns the full stored tuple for external inspection.
func (r *Registry) Get(ctx context.Context, user, asset common.Address) (*model.UserAuthorization, error) {
	rec, err := r.store.Get(ctx, user, asset)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}
	if rec == nil {
		return nil, apperrors.New(apperrors.ErrNotFound, "no authorization record", nil)
	}
	return rec, nil
}

// Reserve 引擎专用的唯一支出记账路径，原子 check-and-increment。
func (r *Registry) Reserve(ctx context.Context, user, asset common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return apperrors.NewInvalidAmount("reserve amount must be positive")
	}
	return r.store.Reserve(ctx, user, asset, amount, r.nowFn().Unix())
}

// Release 回滚一次转账失败的预留，只能由引擎调用。
func (r *Registry) Release(ctx context.Context, user, asset common.Address, amount *big.Int) error {
	return r.store.Release(ctx, user, asset, amount)
}
