package events

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"frauddash/internal/config"
	"frauddash/pkg/models"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		out = append(out, e)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestFilePublisher_WritesJSONLines(t *testing.T) {
	logger, _ := test.NewNullLogger()
	p, err := NewFilePublisher(t.TempDir(), logger)
	require.NoError(t, err)

	verdict := &models.PredictionVerdict{IsFraud: true, Confidence: 0.85, AnomalyScore: 0.78}
	first := NewVerdictEvent(models.PredictRequest{FromAddress: "0xA", ToAddress: "0xB", ValueEth: 7}, models.VerdictSlot{Verdict: verdict})
	second := NewRefreshEvent(models.AggregateStats{TotalTransactions: 3, FraudulentTransactions: 1}, "")

	require.NoError(t, p.Publish(context.Background(), first))
	require.NoError(t, p.Publish(context.Background(), second))
	require.NoError(t, p.Close())

	got := readEvents(t, p.Path())
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, KindVerdict, got[0].Kind)
	assert.Equal(t, verdict, got[0].Verdict)
	assert.Equal(t, KindRefresh, got[1].Kind)
	assert.Equal(t, 3, got[1].Stats.TotalTransactions)
}

func TestFilePublisher_FlushInterval(t *testing.T) {
	logger, _ := test.NewNullLogger()
	p, err := NewFilePublisher(t.TempDir(), logger)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Publish(context.Background(), NewRefreshEvent(models.AggregateStats{}, "")))

	assert.Eventually(t, func() bool {
		info, err := os.Stat(p.Path())
		return err == nil && info.Size() > 0
	}, 3*time.Second, 50*time.Millisecond, "未达到批量大小时定时刷新")
}

func TestFilePublisher_PublishAfterClose(t *testing.T) {
	logger, _ := test.NewNullLogger()
	p, err := NewFilePublisher(t.TempDir(), logger)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close(), "重复关闭无副作用")

	err = p.Publish(context.Background(), NewRefreshEvent(models.AggregateStats{}, ""))
	assert.ErrorIs(t, err, ErrPublisherClosed)
}

func TestNewPublisher_File(t *testing.T) {
	logger, _ := test.NewNullLogger()

	p, err := NewPublisher(&config.EventsConfig{Sink: "file", Dir: t.TempDir()}, logger)
	require.NoError(t, err)
	defer p.Close()

	assert.IsType(t, &FilePublisher{}, p)
}
