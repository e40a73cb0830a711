package verification

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dbank-service/dbank_service/internal/adapters/explorer"
	"github.com/dbank-service/dbank_service/internal/infrastructure/config"
)

// TransferEventTopic is the keccak hash of Transfer(address,address,uint256)
const TransferEventTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

// nativeTokenDecimals applies to every supported EVM chain
const nativeTokenDecimals = 18

// tokenTransfer is a decoded ERC-20 transfer from a receipt log
type tokenTransfer struct {
	Symbol    string
	Recipient string
	Amount    decimal.Decimal
}

// decodeTokenTransfers scans receipt logs for Transfer events emitted by
// the network's supported stablecoin contracts, in log order. Swaps and
// routed payments emit several transfers, so callers pick the one that
// pays the expected recipient.
func decodeTokenTransfers(logs []explorer.Log, tokens map[string]config.TokenConfig) ([]tokenTransfer, error) {
	var transfers []tokenTransfer
	for _, log := range logs {
		if len(log.Topics) < 3 || !strings.EqualFold(log.Topics[0], TransferEventTopic) {
			continue
		}
		for symbol, token := range tokens {
			if !strings.EqualFold(log.Address, token.Address) {
				continue
			}
			amount, err := hexToDecimal(log.Data, token.Decimals)
			if err != nil {
				return nil, fmt.Errorf("decode %s transfer amount: %w", symbol, err)
			}
			transfers = append(transfers, tokenTransfer{
				Symbol:    symbol,
				Recipient: topicAddress(log.Topics[2]),
				Amount:    amount,
			})
		}
	}
	return transfers, nil
}

// decodeNativeAmount converts a hex wei value to whole native tokens
func decodeNativeAmount(hexValue string) (decimal.Decimal, error) {
	return hexToDecimal(hexValue, nativeTokenDecimals)
}

// topicAddress extracts the address from a 32-byte indexed event topic.
// Topics left-pad addresses to 32 bytes, so the address is the last
// 20 bytes.
func topicAddress(topic string) string {
	if len(topic) < 26 {
		return strings.ToLower(topic)
	}
	return strings.ToLower("0x" + topic[26:])
}

// hexToDecimal parses a hex quantity and scales it down by the token's
// decimals. Amounts exceed uint64 range routinely, so this goes through
// big.Int.
func hexToDecimal(hexStr string, decimals int) (decimal.Decimal, error) {
	s := strings.TrimPrefix(strings.TrimSpace(hexStr), "0x")
	if s == "" {
		return decimal.Zero, nil
	}
	value, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return decimal.Zero, fmt.Errorf("invalid hex quantity %q", hexStr)
	}
	return decimal.NewFromBigInt(value, -int32(decimals)), nil
}
