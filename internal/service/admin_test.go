package service

import (
	"testing"

	"github.com/Baptiste-Yucca/rent2repay/internal/model"
	"github.com/Baptiste-Yucca/rent2repay/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/common"
)

var (
	adminAddr    = common.HexToAddress("0xaaaa000000000000000000000000000000000001")
	strangerAddr = common.HexToAddress("0xbbbb000000000000000000000000000000000002")
	daoRecipient = common.HexToAddress("0xdddd000000000000000000000000000000000003")
)

func validFees() model.FeeParameters {
	return model.FeeParameters{BotFeeBps: 50, DaoFeeBps: 20, DaoFeeRecipient: daoRecipient}
}

func TestNewControllerValidation(t *testing.T) {
	if _, err := NewController(common.Address{}, validFees(), nil); err == nil {
		t.Fatalf("accepted zero admin address")
	}

	bad := validFees()
	bad.BotFeeBps = 9001
	bad.DaoFeeBps = 1000
	if _, err := NewController(adminAddr, bad, nil); err == nil {
		t.Fatalf("accepted fee bps sum above 10000")
	}

	bad = validFees()
	bad.DaoFeeRecipient = common.Address{}
	if _, err := NewController(adminAddr, bad, nil); err == nil {
		t.Fatalf("accepted zero dao recipient")
	}

	ctrl, err := NewController(adminAddr, validFees(), nil)
	if err != nil {
		t.Fatalf("valid controller rejected: %v", err)
	}
	state := ctrl.State()
	if state.Paused || state.Version != 1 || state.Admin != adminAddr {
		t.Fatalf("unexpected initial state: %+v", state)
	}
}

func TestSetFeeParameters(t *testing.T) {
	ctrl, _ := NewController(adminAddr, validFees(), nil)

	err := ctrl.SetFeeParameters(strangerAddr, validFees())
	if apperrors.TypeOf(err) != apperrors.ErrUnauthorized {
		t.Fatalf("expected UNAUTHORIZED for stranger, got %v", err)
	}

	next := model.FeeParameters{BotFeeBps: 100, DaoFeeBps: 30, DaoFeeRecipient: daoRecipient}
	if err := ctrl.SetFeeParameters(adminAddr, next); err != nil {
		t.Fatalf("set fees failed: %v", err)
	}
	if got := ctrl.FeeParams(); got != next {
		t.Fatalf("fee params not applied: %+v", got)
	}

	invalid := model.FeeParameters{BotFeeBps: 6000, DaoFeeBps: 5000, DaoFeeRecipient: daoRecipient}
	if err := ctrl.SetFeeParameters(adminAddr, invalid); apperrors.TypeOf(err) != apperrors.ErrInvalidConfig {
		t.Fatalf("expected INVALID_CONFIGURATION, got %v", err)
	}
}

func TestPauseUnpauseIdempotent(t *testing.T) {
	ctrl, _ := NewController(adminAddr, validFees(), nil)

	for i := 0; i < 2; i++ {
		if err := ctrl.Pause(adminAddr); err != nil {
			t.Fatalf("pause #%d errored: %v", i+1, err)
		}
		if !ctrl.Paused() {
			t.Fatalf("not paused after pause #%d", i+1)
		}
	}
	for i := 0; i < 2; i++ {
		if err := ctrl.Unpause(adminAddr); err != nil {
			t.Fatalf("unpause #%d errored: %v", i+1, err)
		}
		if ctrl.Paused() {
			t.Fatalf("still paused after unpause #%d", i+1)
		}
	}

	if err := ctrl.Pause(strangerAddr); apperrors.TypeOf(err) != apperrors.ErrUnauthorized {
		t.Fatalf("stranger could pause: %v", err)
	}
}

func TestTwoStepAdminTransfer(t *testing.T) {
	ctrl, _ := NewController(adminAddr, validFees(), nil)
	newAdmin := common.HexToAddress("0x4444444444444444444444444444444444444444")

	if err := ctrl.TransferAdmin(strangerAddr, newAdmin); apperrors.TypeOf(err) != apperrors.ErrUnauthorized {
		t.Fatalf("stranger could propose transfer: %v", err)
	}
	if err := ctrl.TransferAdmin(adminAddr, common.Address{}); apperrors.TypeOf(err) != apperrors.ErrInvalidConfig {
		t.Fatalf("zero address accepted as new admin: %v", err)
	}

	if err := ctrl.TransferAdmin(adminAddr, newAdmin); err != nil {
		t.Fatalf("propose failed: %v", err)
	}
	// Proposal alone changes nothing.
	if ctrl.State().Admin != adminAddr {
		t.Fatalf("admin changed before accept")
	}

	if err := ctrl.AcceptAdmin(strangerAddr); apperrors.TypeOf(err) != apperrors.ErrUnauthorized {
		t.Fatalf("stranger could accept: %v", err)
	}
	if err := ctrl.AcceptAdmin(newAdmin); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	state := ctrl.State()
	if state.Admin != newAdmin || state.PendingAdmin != (common.Address{}) {
		t.Fatalf("transfer not finalized: %+v", state)
	}
	if err := ctrl.Pause(adminAddr); apperrors.TypeOf(err) != apperrors.ErrUnauthorized {
		t.Fatalf("old admin retained privileges: %v", err)
	}
}

func TestUpgradeValidation(t *testing.T) {
	ctrl, _ := NewController(adminAddr, validFees(), nil)

	if err := ctrl.Upgrade(adminAddr, nil); apperrors.TypeOf(err) != apperrors.ErrInvalidConfig {
		t.Fatalf("nil logic accepted: %v", err)
	}
	if err := ctrl.Upgrade(adminAddr, RepayLogicV1{}); apperrors.TypeOf(err) != apperrors.ErrInternal {
		t.Fatalf("upgrade without engine should fail: %v", err)
	}
	if err := ctrl.Upgrade(strangerAddr, RepayLogicV1{}); apperrors.TypeOf(err) != apperrors.ErrUnauthorized {
		t.Fatalf("stranger could upgrade: %v", err)
	}
}
