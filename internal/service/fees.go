package service

import (
	"fmt"
	"math/big"

	"github.com/Baptiste-Yucca/rent2repay/internal/model"
	"github.com/Baptiste-Yucca/rent2repay/internal/pkg/apperrors"
)

// BpsDenominator 基点分母：1 bps = 1/10000
const BpsDenominator = 10000

var bpsDenom = big.NewInt(BpsDenominator)

// SplitFees 将毛额拆分为 (bot fee, dao fee, net)。
// 两个费用都向下取整，取整余量归入 net —— 费用永远不会向上取整损害用户。
// 费率在使用点再次校验：授权与执行之间参数可能已被 Admin 修改。
func SplitFees(p model.FeeParameters, gross *big.Int) (model.FeeSplit, error) {
	if p.BotFeeBps+p.DaoFeeBps > BpsDenominator {
		return model.FeeSplit{}, apperrors.NewInvalidConfig(
			fmt.Sprintf("fee bps sum %d exceeds %d", p.BotFeeBps+p.DaoFeeBps, BpsDenominator))
	}
	if gross == nil || gross.Sign() < 0 {
		return model.FeeSplit{}, apperrors.NewInvalidAmount("gross amount must be non-negative")
	}

	bot := new(big.Int).Mul(gross, new(big.Int).SetUint64(p.BotFeeBps))
	bot.Div(bot, bpsDenom)
	dao := new(big.Int).Mul(gross, new(big.Int).SetUint64(p.DaoFeeBps))
	dao.Div(dao, bpsDenom)

	net := new(big.Int).Sub(gross, bot)
	net.Sub(net, dao)

	return model.FeeSplit{Bot: bot, Dao: dao, Net: net}, nil
}
