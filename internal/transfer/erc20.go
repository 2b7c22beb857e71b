package transfer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/Baptiste-Yucca/rent2repay/internal/pkg/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const erc20ABI = `[{"name":"transferFrom","type":"function","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}]`

// ERC20Transferor 通过 transferFrom 在链上搬运资产。
// 用户事先 approve 本服务的 operator 地址；授权额度不足时交易即失败，
// 引擎据此回滚预留。
type ERC20Transferor struct {
	client   *ethclient.Client
	key      *ecdsa.PrivateKey
	operator common.Address
	chainID  *big.Int
	parsed   abi.ABI
}

func NewERC20Transferor(rpcURL, privateKeyHex string, chainID int64) (*ERC20Transferor, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc: %w", err)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid operator key: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, err
	}
	return &ERC20Transferor{
		client:   client,
		key:      key,
		operator: crypto.PubkeyToAddress(key.PublicKey),
		chainID:  big.NewInt(chainID),
		parsed:   parsed,
	}, nil
}

// TransferBatch 逐笔提交。中途失败时对已落地的支路发起反向 transferFrom
// 补偿（收款方需事先 approve operator，协议自有地址在部署时完成）；
// 补偿也失败时记录错误等待人工对账。
func (t *ERC20Transferor) TransferBatch(ctx context.Context, token, from common.Address, legs []Leg) error {
	for i, leg := range legs {
		if err := t.Transfer(ctx, token, from, leg.To, leg.Amount); err != nil {
			for _, done := range legs[:i] {
				if compErr := t.Transfer(ctx, token, done.To, from, done.Amount); compErr != nil {
					logger.Error("failed to compensate transfer leg",
						"token", token.Hex(), "to", done.To.Hex(),
						"amount", done.Amount.String(), "error", compErr)
				}
			}
			return err
		}
	}
	return nil
}

func (t *ERC20Transferor) Transfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}

	data, err := t.parsed.Pack("transferFrom", from, to, amount)
	if err != nil {
		return err
	}

	nonce, err := t.client.PendingNonceAt(ctx, t.operator)
	if err != nil {
		return fmt.Errorf("failed to fetch nonce: %w", err)
	}
	gasPrice, err := t.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch gas price: %w", err)
	}
	gasLimit, err := t.client.EstimateGas(ctx, ethereum.CallMsg{
		From: t.operator,
		To:   &token,
		Data: data,
	})
	if err != nil {
		// estimateGas 失败通常意味着 transferFrom 会 revert（余额/授权不足）
		return fmt.Errorf("transfer would revert: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &token,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(t.chainID), t.key)
	if err != nil {
		return err
	}
	if err := t.client.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("failed to broadcast transfer: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, t.client, signed)
	if err != nil {
		return fmt.Errorf("failed waiting for transfer: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transfer reverted on-chain: tx %s", signed.Hash().Hex())
	}
	logger.Debug("erc20 transfer mined",
		"tx", signed.Hash().Hex(), "token", token.Hex(), "from", from.Hex(), "to", to.Hex())
	return nil
}
