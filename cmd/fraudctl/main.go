package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"frauddash/internal/config"
	"frauddash/internal/dashboard"
	"frauddash/internal/logging"
	"frauddash/internal/scorer"
	"frauddash/pkg/models"
)

// options 全局参数
type options struct {
	configFile string
	scorerURL  string
	timeout    time.Duration
	verbose    bool
	jsonOutput bool
}

// predictOptions 评分参数
type predictOptions struct {
	from     string
	to       string
	value    string
	gasPrice string
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "执行失败: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "fraudctl",
		Short:         "以太坊交易欺诈评分命令行工具",
		Long:          `查看评分服务中的交易记录与统计，并提交单笔交易评分`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "配置文件路径（为空时只使用默认值与环境变量）")
	rootCmd.PersistentFlags().StringVar(&opts.scorerURL, "scorer-url", "", "评分服务地址，覆盖配置文件")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "命令超时")
	rootCmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "详细输出")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "以JSON格式输出")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "列出交易记录",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := refreshSnapshot(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), snap.Records)
			}
			return renderRecords(cmd.OutOrStdout(), snap.Records)
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "查看统计信息",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := refreshSnapshot(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), snap.Stats)
			}
			renderStats(cmd.OutOrStdout(), snap.Stats)
			return nil
		},
	}

	popts := &predictOptions{}
	predictCmd := &cobra.Command{
		Use:   "predict",
		Short: "提交一笔交易评分",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, opts, popts)
		},
	}
	predictCmd.Flags().StringVar(&popts.from, "from", "", "发送方地址")
	predictCmd.Flags().StringVar(&popts.to, "to", "", "接收方地址")
	predictCmd.Flags().StringVar(&popts.value, "value", "", "交易金额（ETH）")
	predictCmd.Flags().StringVar(&popts.gasPrice, "gas-price", "", "Gas价格（ETH）")

	rootCmd.AddCommand(listCmd, statsCmd, predictCmd)
	return rootCmd
}

// newController 根据配置创建控制器
func newController(opts *options) (*dashboard.Controller, error) {
	cfg, err := config.LoadConfigFromFile(opts.configFile)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if opts.scorerURL != "" {
		cfg.Scorer.BaseURL = opts.scorerURL
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	// 命令行默认只输出警告以上的日志，避免干扰结果输出
	logCfg := &logging.LogConfig{Level: "warn", Format: "text", Output: "stderr"}
	if opts.verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	return dashboard.NewController(scorer.NewHTTPClient(cfg.Scorer, logger), logger), nil
}

func commandContext(parent context.Context, opts *options) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, opts.timeout)
}

// refreshSnapshot 刷新一次并返回快照，刷新失败时返回错误
func refreshSnapshot(parent context.Context, opts *options) (dashboard.Snapshot, error) {
	controller, err := newController(opts)
	if err != nil {
		return dashboard.Snapshot{}, err
	}

	ctx, cancel := commandContext(parent, opts)
	defer cancel()

	if err := controller.Refresh(ctx); err != nil {
		return dashboard.Snapshot{}, fmt.Errorf("%s: %w", controller.Snapshot().Error, err)
	}
	return controller.Snapshot(), nil
}

func runPredict(cmd *cobra.Command, opts *options, popts *predictOptions) error {
	controller, err := newController(opts)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd.Context(), opts)
	defer cancel()

	draft := models.PredictionDraft{
		FromAddress: popts.from,
		ToAddress:   popts.to,
		ValueEth:    popts.value,
		GasPriceEth: popts.gasPrice,
	}
	result, err := controller.Submit(ctx, draft)
	if err != nil {
		return errors.New(controller.Snapshot().ValidationError)
	}

	out := cmd.OutOrStdout()
	snap := controller.Snapshot()
	if opts.jsonOutput {
		if err := writeJSON(out, snap.Verdict); err != nil {
			return err
		}
	} else {
		for _, w := range snap.Warnings {
			fmt.Fprintf(out, "警告: %s\n", w)
		}
		renderVerdict(out, snap.Verdict)
	}

	if !result.OK() {
		return fmt.Errorf("评分失败: %s", result.Err.Message)
	}
	return nil
}

func renderRecords(out io.Writer, records []models.TransactionRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(out, "暂无交易记录")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFROM\tTO\tVALUE (ETH)\tGAS PRICE (ETH)\tSTATUS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			models.ShortAddress(r.FromAddress),
			models.ShortAddress(r.ToAddress),
			r.FormatValue(),
			r.FormatGasPrice(),
			r.StatusLabel(),
		)
	}
	return tw.Flush()
}

func renderStats(out io.Writer, stats models.AggregateStats) {
	fmt.Fprintln(out, "交易统计")
	fmt.Fprintln(out, strings.Repeat("=", 40))
	fmt.Fprintf(out, "%-16s: %d\n", "总交易数", stats.TotalTransactions)
	fmt.Fprintf(out, "%-16s: %d\n", "可疑交易数", stats.FraudulentTransactions)
	fmt.Fprintf(out, "%-16s: %s\n", "平均金额", stats.FormatAverageValue())
	fmt.Fprintf(out, "%-16s: %.1f%%\n", "欺诈率", stats.FraudRate*100)
}

func renderVerdict(out io.Writer, slot models.VerdictSlot) {
	switch {
	case slot.Error != nil:
		fmt.Fprintf(out, "错误: %s\n", slot.Error.Message)
	case slot.Verdict != nil:
		v := slot.Verdict
		fmt.Fprintln(out, v.Label())
		fmt.Fprintf(out, "Confidence: %s\n", v.FormatConfidence())
		fmt.Fprintf(out, "Anomaly Score: %s\n", v.FormatAnomalyScore())
	}
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
