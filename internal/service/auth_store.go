package service

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/Baptiste-Yucca/rent2repay/internal/model"
	"github.com/Baptiste-Yucca/rent2repay/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/common"
)

// AuthStore 是授权记录的持久化接口。
// Reserve 必须原子地完成「过期回卷 + 校验 + 累加」，这是整个引擎唯一的
// 并发串行化点：并发的 TriggerRepay 不允许让累计支出超过 periodCap。
type AuthStore interface {
	Get(ctx context.Context, user, asset common.Address) (*model.UserAuthorization, error)
	Put(ctx context.Context, auth *model.UserAuthorization) error
	Reserve(ctx context.Context, user, asset common.Address, amount *big.Int, now int64) error
	Release(ctx context.Context, user, asset common.Address, amount *big.Int) error
}

// MemoryAuthStore 内存实现，用于开发与测试；生产环境用 Postgres
type MemoryAuthStore struct {
	mu      sync.Mutex
	records map[string]*model.UserAuthorization
	window  *WindowTracker
}

func NewMemoryAuthStore(window *WindowTracker) *MemoryAuthStore {
	return &MemoryAuthStore{
		records: make(map[string]*model.UserAuthorization),
		window:  window,
	}
}

func (s *MemoryAuthStore) Get(ctx context.Context, user, asset common.Address) (*model.UserAuthorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[model.Key(user, asset)].Clone(), nil
}

func (s *MemoryAuthStore) Put(ctx context.Context, auth *model.UserAuthorization) error {
	if auth == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[model.Key(auth.User, auth.Asset)] = auth.Clone()
	return nil
}

// Reserve 在单把锁内完成 check-and-increment，其他调用在此之前或之后
// 看到的都是完整状态，不存在中间态。
func (s *MemoryAuthStore) Reserve(ctx context.Context, user, asset common.Address, amount *big.Int, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[model.Key(user, asset)]
	if !ok || !rec.Authorized() {
		return apperrors.NewNotAuthorized("no active authorization for user/asset")
	}

	if s.window.Stale(rec.PeriodStart, now) {
		rec.PeriodStart = s.window.AlignedStart(rec.PeriodStart, now)
		rec.SpentThisPeriod = new(big.Int)
	}

	next := new(big.Int).Add(rec.SpentThisPeriod, amount)
	if next.Cmp(rec.PeriodCap) > 0 {
		return apperrors.NewCapExceeded(fmt.Sprintf(
			"reserve %s exceeds remaining allowance (cap %s, spent %s)",
			amount, rec.PeriodCap, rec.SpentThisPeriod))
	}
	rec.SpentThisPeriod = next
	return nil
}

func (s *MemoryAuthStore) Release(ctx context.Context, user, asset common.Address, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[model.Key(user, asset)]
	if !ok {
		return nil
	}
	rec.SpentThisPeriod = new(big.Int).Sub(rec.SpentThisPeriod, amount)
	if rec.SpentThisPeriod.Sign() < 0 {
		rec.SpentThisPeriod = new(big.Int)
	}
	return nil
}
