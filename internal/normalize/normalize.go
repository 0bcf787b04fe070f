package normalize

import (
	"encoding/json"
	"fmt"

	dasherrors "frauddash/internal/errors"
	"frauddash/pkg/models"
)

// Records 解析交易列表响应体
//
// 顶层必须是JSON数组，否则返回ShapeError；元素不做剔除，非对象元素得到默认值记录，
// 保持原有位置与顺序。
func Records(raw []byte) ([]models.TransactionRecord, error) {
	var payload interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, dasherrors.NewShapeError(dasherrors.CodeListNotArray, "交易列表响应不是合法JSON", err)
	}
	return Values(payload)
}

// Values 归一化已解码的JSON值
func Values(v interface{}) ([]models.TransactionRecord, error) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, dasherrors.NewShapeError(dasherrors.CodeListNotArray, "交易列表响应不是数组",
			fmt.Errorf("顶层类型为 %s", kindOf(v)))
	}

	records := make([]models.TransactionRecord, len(items))
	for i, item := range items {
		records[i] = Record(item)
	}
	return records, nil
}

// Record 归一化单条记录
func Record(v interface{}) models.TransactionRecord {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return models.TransactionRecord{}
	}

	return models.TransactionRecord{
		ID:          String(obj["id"]),
		FromAddress: String(obj["from_address"]),
		ToAddress:   String(obj["to_address"]),
		ValueEth:    Number(obj["value_eth"]),
		GasPriceEth: Number(obj["gas_price_eth"]),
		IsFraud:     Bool(obj["is_fraud"]),
		Timestamp:   OptionalTime(obj["timestamp"]),
	}
}

func kindOf(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]interface{}:
		return "object"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
