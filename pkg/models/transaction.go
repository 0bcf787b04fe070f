package models

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
)

// TransactionRecord 已评分的历史交易记录（从评分服务获取后不可变）
type TransactionRecord struct {
	ID          string     `json:"id"` // 排序/图表横轴用，不保证唯一
	FromAddress string     `json:"from_address"`
	ToAddress   string     `json:"to_address"`
	ValueEth    float64    `json:"value_eth"`
	GasPriceEth float64    `json:"gas_price_eth"`
	IsFraud     bool       `json:"is_fraud"`
	Timestamp   *time.Time `json:"timestamp,omitempty"` // 服务端未提供时为nil
}

// ValueWei 交易金额换算为wei
func (r TransactionRecord) ValueWei() *big.Int {
	return EthToWei(r.ValueEth)
}

// StatusLabel 列表中的状态标签
func (r TransactionRecord) StatusLabel() string {
	if r.IsFraud {
		return "Suspicious"
	}
	return "Normal"
}

// FormatValue 金额显示（4位小数）
func (r TransactionRecord) FormatValue() string {
	return fmt.Sprintf("%.4f", r.ValueEth)
}

// FormatGasPrice Gas价格显示（8位小数）
func (r TransactionRecord) FormatGasPrice() string {
	return fmt.Sprintf("%.8f", r.GasPriceEth)
}

// AggregateStats 由当前记录集派生的统计信息
type AggregateStats struct {
	TotalTransactions      int     `json:"total_transactions"`
	FraudulentTransactions int     `json:"fraudulent_transactions"`
	AverageValueEth        float64 `json:"average_value_eth"`
	FraudRate              float64 `json:"fraud_rate"`
}

// FormatAverageValue 平均金额显示
func (s AggregateStats) FormatAverageValue() string {
	return fmt.Sprintf("%.4f ETH", s.AverageValueEth)
}

// TrendPoint 金额趋势图上的一个点
type TrendPoint struct {
	ID       string  `json:"id"`
	ValueEth float64 `json:"value_eth"`
}

// EthToWei ETH换算为wei，非正数返回0
func EthToWei(eth float64) *big.Int {
	if eth <= 0 {
		return big.NewInt(0)
	}
	wei, _ := new(big.Float).Mul(big.NewFloat(eth), big.NewFloat(params.Ether)).Int(nil)
	return wei
}

// ShortAddress 地址缩略显示：前8位...后6位
func ShortAddress(addr string) string {
	if common.IsHexAddress(addr) {
		addr = common.HexToAddress(addr).Hex()
	}
	if len(addr) <= 14 {
		return addr
	}
	return addr[:8] + "..." + addr[len(addr)-6:]
}
