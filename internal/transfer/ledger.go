package transfer

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger 内存账本，提供与链上代币一致的转账语义，用于开发与测试。
type Ledger struct {
	mu       sync.Mutex
	balances map[common.Address]map[common.Address]*big.Int // token -> holder -> balance
}

func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// Mint credits `amount` of `token` to `holder`.
func (l *Ledger) Mint(token, holder common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(token, holder, amount)
}

func (l *Ledger) BalanceOf(token, holder common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if bal, ok := l.balances[token][holder]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

func (l *Ledger) Transfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("transfer amount must be non-negative")
	}
	if amount.Sign() == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balances[token][from]
	if bal == nil || bal.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance: %s has %s of %s, need %s",
			from.Hex(), bal, token.Hex(), amount)
	}
	bal.Sub(bal, amount)
	l.credit(token, to, amount)
	return nil
}

// TransferBatch 在一把锁内先校验总额再逐笔记账，部分成功的状态
// 对外不可见：校验失败时没有任何余额被修改。
func (l *Ledger) TransferBatch(ctx context.Context, token, from common.Address, legs []Leg) error {
	total := new(big.Int)
	for _, leg := range legs {
		if leg.Amount == nil || leg.Amount.Sign() < 0 {
			return fmt.Errorf("transfer amount must be non-negative")
		}
		total.Add(total, leg.Amount)
	}
	if total.Sign() == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balances[token][from]
	if bal == nil || bal.Cmp(total) < 0 {
		return fmt.Errorf("insufficient balance: %s has %s of %s, need %s",
			from.Hex(), bal, token.Hex(), total)
	}
	for _, leg := range legs {
		if leg.Amount.Sign() == 0 {
			continue
		}
		bal.Sub(bal, leg.Amount)
		l.credit(token, leg.To, leg.Amount)
	}
	return nil
}

func (l *Ledger) credit(token, holder common.Address, amount *big.Int) {
	if l.balances[token] == nil {
		l.balances[token] = make(map[common.Address]*big.Int)
	}
	if l.balances[token][holder] == nil {
		l.balances[token][holder] = new(big.Int)
	}
	l.balances[token][holder].Add(l.balances[token][holder], amount)
}
