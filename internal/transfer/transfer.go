// Package transfer abstracts the underlying value-transfer primitive.
// The engine only needs standard balance-transfer semantics: the call
// fails when the source balance or allowance is insufficient.
package transfer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Leg 是一笔批量转账中的单条支路
type Leg struct {
	To     common.Address
	Amount *big.Int
}

type Transferor interface {
	// Transfer moves `amount` of `token` from `from` to `to`.
	Transfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error

	// TransferBatch moves every leg from `from`, all-or-nothing: either all
	// legs land or no value has moved when it returns an error.
	TransferBatch(ctx context.Context, token, from common.Address, legs []Leg) error
}
