package stats

import (
	"frauddash/pkg/models"
)

// Aggregate 由记录集计算统计信息，纯函数，空集合返回全零
func Aggregate(records []models.TransactionRecord) models.AggregateStats {
	total := len(records)
	if total == 0 {
		return models.AggregateStats{}
	}

	var fraud int
	var sum float64
	for _, r := range records {
		if r.IsFraud {
			fraud++
		}
		sum += r.ValueEth
	}

	return models.AggregateStats{
		TotalTransactions:      total,
		FraudulentTransactions: fraud,
		AverageValueEth:        sum / float64(total),
		FraudRate:              float64(fraud) / float64(total),
	}
}

// Trend 金额趋势序列，顺序与记录集一致
func Trend(records []models.TransactionRecord) []models.TrendPoint {
	points := make([]models.TrendPoint, len(records))
	for i, r := range records {
		points[i] = models.TrendPoint{ID: r.ID, ValueEth: r.ValueEth}
	}
	return points
}
