package service

import (
	"strings"

	"github.com/Baptiste-Yucca/rent2repay/internal/config"
	"github.com/Baptiste-Yucca/rent2repay/internal/model"
	"github.com/ethereum/go-ethereum/common"
)

// AssetBook 受支持资产的只读索引，按符号或地址解析
type AssetBook struct {
	bySymbol map[string]model.Asset
	byAddr   map[common.Address]model.Asset
}

func NewAssetBook(cfgs []config.AssetConfig) *AssetBook {
	b := &AssetBook{
		bySymbol: make(map[string]model.Asset),
		byAddr:   make(map[common.Address]model.Asset),
	}
	for _, c := range cfgs {
		a := model.Asset{
			Symbol:   strings.ToUpper(c.Symbol),
			Address:  common.HexToAddress(c.Address),
			Decimals: c.Decimals,
			DebtSink: common.HexToAddress(c.DebtSink),
		}
		b.Register(a)
	}
	return b
}

func (b *AssetBook) Register(a model.Asset) {
	b.bySymbol[strings.ToUpper(a.Symbol)] = a
	b.byAddr[a.Address] = a
}

func (b *AssetBook) ByAddress(addr common.Address) (model.Asset, bool) {
	a, ok := b.byAddr[addr]
	return a, ok
}

// Resolve accepts either an asset symbol ("WXDAI") or a token address.
func (b *AssetBook) Resolve(s string) (model.Asset, bool) {
	s = strings.TrimSpace(s)
	if common.IsHexAddress(s) {
		return b.ByAddress(common.HexToAddress(s))
	}
	a, ok := b.bySymbol[strings.ToUpper(s)]
	return a, ok
}

func (b *AssetBook) List() []model.Asset {
	out := make([]model.Asset, 0, len(b.byAddr))
	for _, a := range b.byAddr {
		out = append(out, a)
	}
	return out
}
