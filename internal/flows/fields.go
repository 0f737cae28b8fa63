package flows

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// 步骤数据来自 JSON 请求或 CLI，数值可能是字符串、float64 或 json.Number

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return strings.TrimSpace(s)
}

func decimalField(data map[string]any, key string) (decimal.Decimal, error) {
	switch v := data[key].(type) {
	case nil:
		return decimal.Zero, fmt.Errorf("%s is required", key)
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case json.Number:
		return decimal.NewFromString(v.String())
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case decimal.Decimal:
		return v, nil
	default:
		return decimal.Zero, fmt.Errorf("%s has unsupported type %T", key, v)
	}
}

// addressList 接受 []string 或 JSON 解码出的 []any
func addressList(data map[string]any, key string) ([]string, error) {
	var raw []string
	switch v := data[key].(type) {
	case nil:
		return nil, nil
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s contains a non-string entry", key)
			}
			raw = append(raw, s)
		}
	default:
		return nil, fmt.Errorf("%s has unsupported type %T", key, v)
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("%q is not a valid address", s)
		}
		out = append(out, common.HexToAddress(s).Hex())
	}
	return out, nil
}

// shareMap 地址 -> 百分比，键统一为 checksum 格式
func shareMap(data map[string]any, key string) (map[string]decimal.Decimal, error) {
	raw, ok := data[key].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s is required", key)
	}
	out := make(map[string]decimal.Decimal, len(raw))
	for addr := range raw {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("%q is not a valid address", addr)
		}
		d, err := decimalField(raw, addr)
		if err != nil {
			return nil, fmt.Errorf("share for %s: %w", addr, err)
		}
		out[common.HexToAddress(addr).Hex()] = d
	}
	return out, nil
}
