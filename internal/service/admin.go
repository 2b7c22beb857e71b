package service

import (
	"fmt"
	"sync"

	"github.com/Baptiste-Yucca/rent2repay/internal/model"
	"github.com/Baptiste-Yucca/rent2repay/internal/pkg/apperrors"
	"github.com/Baptiste-Yucca/rent2repay/internal/pkg/logger"
	"github.com/Baptiste-Yucca/rent2repay/internal/pkg/metrics"
	"github.com/ethereum/go-ethereum/common"
)

// Controller 持有特权配置（费率、暂停、管理员），并把引擎行为升级
// 收口到唯一的特权入口。其它组件永远不直接改这些状态。
type Controller struct {
	mu     sync.RWMutex
	state  model.EngineState
	fees   model.FeeParameters
	events *EventService
	engine *Engine
}

func NewController(admin common.Address, fees model.FeeParameters, events *EventService) (*Controller, error) {
	if admin == (common.Address{}) {
		return nil, apperrors.NewInvalidConfig("admin address must not be the zero address")
	}
	if err := validateFees(fees); err != nil {
		return nil, err
	}
	c := &Controller{
		state: model.EngineState{
			Admin:   admin,
			Paused:  false,
			Version: 1,
		},
		fees:   fees,
		events: events,
	}
	metrics.EngineVersion.Set(float64(c.state.Version))
	return c, nil
}

// AttachEngine wires the engine whose logic Upgrade swaps. Called once at startup.
func (c *Controller) AttachEngine(e *Engine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine = e
}

func (c *Controller) SetFeeParameters(caller common.Address, fees model.FeeParameters) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireAdmin(caller); err != nil {
		return err
	}
	if err := validateFees(fees); err != nil {
		return err
	}
	old := c.fees
	c.fees = fees
	c.emit(&model.Event{
		Kind: model.EventFeeParametersChanged,
		Context: map[string]interface{}{
			"old_bot_fee_bps": old.BotFeeBps,
			"old_dao_fee_bps": old.DaoFeeBps,
			"bot_fee_bps":     fees.BotFeeBps,
			"dao_fee_bps":     fees.DaoFeeBps,
			"dao_recipient":   fees.DaoFeeRecipient.Hex(),
		},
	})
	return nil
}

// Pause 暂停结算。重复暂停是 no-op，不报错。
func (c *Controller) Pause(caller common.Address) error {
	return c.setPaused(caller, true)
}

func (c *Controller) Unpause(caller common.Address) error {
	return c.setPaused(caller, false)
}

func (c *Controller) setPaused(caller common.Address, paused bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireAdmin(caller); err != nil {
		return err
	}
	if c.state.Paused == paused {
		return nil
	}
	c.state.Paused = paused
	kind := model.EventPaused
	if !paused {
		kind = model.EventUnpaused
	}
	logger.Warn("engine pause state changed", "paused", paused, "admin", caller.Hex())
	c.emit(&model.Event{Kind: kind})
	return nil
}

// TransferAdmin 两段式转移：先提名，新管理员 AcceptAdmin 后才生效，
// 避免一次误操作把权限转给不可用地址。
func (c *Controller) TransferAdmin(caller, newAdmin common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireAdmin(caller); err != nil {
		return err
	}
	if newAdmin == (common.Address{}) {
		return apperrors.NewInvalidConfig("new admin must not be the zero address")
	}
	c.state.PendingAdmin = newAdmin
	return nil
}

func (c *Controller) AcceptAdmin(caller common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.PendingAdmin == (common.Address{}) || caller != c.state.PendingAdmin {
		return apperrors.NewUnauthorized("caller is not the pending admin")
	}
	old := c.state.Admin
	c.state.Admin = caller
	c.state.PendingAdmin = common.Address{}
	c.emit(&model.Event{
		Kind: model.EventAdminTransferred,
		Context: map[string]interface{}{
			"old_admin": old.Hex(),
			"new_admin": caller.Hex(),
		},
	})
	return nil
}

// Upgrade 替换引擎的结算逻辑并递增版本号。授权记录、费率与引擎状态
// 全部原样保留：升级只换行为，不动数据。
func (c *Controller) Upgrade(caller common.Address, newLogic RepayLogic) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireAdmin(caller); err != nil {
		return err
	}
	if newLogic == nil {
		return apperrors.NewInvalidConfig("upgrade requires a settlement logic")
	}
	if c.engine == nil {
		return apperrors.New(apperrors.ErrInternal, "no engine attached", nil)
	}
	c.engine.setLogic(newLogic)
	c.state.Version++
	metrics.EngineVersion.Set(float64(c.state.Version))
	logger.Info("engine upgraded", "version", c.state.Version, "logic", newLogic.Name())
	c.emit(&model.Event{
		Kind: model.EventUpgraded,
		Context: map[string]interface{}{
			"version": c.state.Version,
			"logic":   newLogic.Name(),
		},
	})
	return nil
}

func (c *Controller) Paused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Paused
}

func (c *Controller) FeeParams() model.FeeParameters {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fees
}

func (c *Controller) State() model.EngineState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) requireAdmin(caller common.Address) error {
	if caller != c.state.Admin {
		return apperrors.NewUnauthorized(fmt.Sprintf("caller %s is not the admin", caller.Hex()))
	}
	return nil
}

func (c *Controller) emit(e *model.Event) {
	if c.events != nil {
		c.events.Emit(e)
	}
}

func validateFees(fees model.FeeParameters) error {
	if fees.BotFeeBps+fees.DaoFeeBps > BpsDenominator {
		return apperrors.NewInvalidConfig(fmt.Sprintf(
			"bot_fee_bps + dao_fee_bps must not exceed %d", BpsDenominator))
	}
	if fees.DaoFeeRecipient == (common.Address{}) {
		return apperrors.NewInvalidConfig("dao fee recipient must not be the zero address")
	}
	return nil
}
