package service

import (
	"math/big"

	"github.com/Baptiste-Yucca/rent2repay/internal/model"
)

// WindowTracker 判断记账窗口是否过期以及新窗口的起点。
// 纯逻辑，不产生副作用；当前时间一律由调用方注入，便于确定性测试。
type WindowTracker struct {
	periodLen int64 // seconds
}

func NewWindowTracker(periodLenSeconds int64) *WindowTracker {
	if periodLenSeconds <= 0 {
		periodLenSeconds = 604800 // one week
	}
	return &WindowTracker{periodLen: periodLenSeconds}
}

func (w *WindowTracker) PeriodLength() int64 {
	return w.periodLen
}

// Stale reports whether the record's window has rolled over at `now`.
func (w *WindowTracker) Stale(periodStart, now int64) bool {
	return now >= periodStart+w.periodLen
}

// AlignedStart returns the start of the window containing `now`, aligned to
// the original configuration time. A reset at T+len+10 yields T+len, not
// T+len+10, so repeated near-boundary calls cannot drift the schedule.
func (w *WindowTracker) AlignedStart(periodStart, now int64) int64 {
	if !w.Stale(periodStart, now) {
		return periodStart
	}
	elapsed := now - periodStart
	return periodStart + w.periodLen*(elapsed/w.periodLen)
}

// Available computes the remaining allowance at `now` as if a stale window
// had already been reset. Read-only: the actual reset happens on Reserve.
func (w *WindowTracker) Available(a *model.UserAuthorization, now int64) *big.Int {
	if !a.Authorized() {
		return new(big.Int)
	}
	if w.Stale(a.PeriodStart, now) {
		return new(big.Int).Set(a.PeriodCap)
	}
	spent := a.SpentThisPeriod
	if spent == nil {
		spent = new(big.Int)
	}
	rem := new(big.Int).Sub(a.PeriodCap, spent)
	if rem.Sign() < 0 {
		// Cap was lowered below the amount already spent this period.
		return new(big.Int)
	}
	return rem
}
