package cmd

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wallet-flow/internal/event"
	"wallet-flow/internal/shell"
	"wallet-flow/internal/txflow"
	"wallet-flow/pkg/config"
	"wallet-flow/pkg/timer"
)

type simOptions struct {
	From        string
	To          string
	Amount      string
	Failures    int
	MaxRetries  int
	ManualRetry bool
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "本地模拟一笔交易的完整生命周期",
	Long: `在虚拟时钟上驱动交易状态机: 校验 -> 签名 -> 广播 -> 上链。
--failures 指定上链阶段连续失败的次数，用于观察自动重试与退避。`,
	Run: func(cmd *cobra.Command, args []string) {
		var opts simOptions
		opts.From, _ = cmd.Flags().GetString("from")
		opts.To, _ = cmd.Flags().GetString("to")
		opts.Amount, _ = cmd.Flags().GetString("amount")
		opts.Failures, _ = cmd.Flags().GetInt("failures")
		opts.MaxRetries, _ = cmd.Flags().GetInt("max-retries")
		opts.ManualRetry, _ = cmd.Flags().GetBool("manual-retry")

		final, err := runSimulation(os.Stdout, opts)
		if err != nil {
			fmt.Println(errorStyle.Render("模拟失败: " + err.Error()))
			os.Exit(1)
		}
		fmt.Println("最终状态:", styleState(string(final)))
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().String("from", "0x1111111111111111111111111111111111111111", "发送地址")
	simulateCmd.Flags().String("to", "0x2222222222222222222222222222222222222222", "收款地址")
	simulateCmd.Flags().String("amount", "0.1", "发送金额")
	simulateCmd.Flags().Int("failures", 0, "上链阶段连续失败次数")
	simulateCmd.Flags().Int("max-retries", -1, "自动重试上限，-1 使用配置默认值")
	simulateCmd.Flags().Bool("manual-retry", false, "重试用尽后触发通知上的 Retry 按钮")
}

// runSimulation 在 Manual 时钟上跑完一笔交易，返回最终状态
func runSimulation(w io.Writer, opts simOptions) (txflow.State, error) {
	cfg, err := config.Load(viper.New())
	if err != nil {
		return "", err
	}
	flow := cfg.Flow
	if opts.MaxRetries >= 0 {
		flow.Tx.MaxRetries = opts.MaxRetries
	}
	amount, err := decimal.NewFromString(opts.Amount)
	if err != nil {
		return "", fmt.Errorf("amount: %w", err)
	}

	clock := timer.NewManual()
	var lastRetry txflow.Transition
	printer := txflow.ListenerFunc(func(t txflow.Transition) {
		if t.RetryScheduled {
			lastRetry = t
		}
		fmt.Fprintln(w, renderEvent(event.FromTransition(t)))
	})
	sh := shell.New(shell.Options{Flow: &flow, Scheduler: clock, Listeners: []txflow.Listener{printer}})
	defer sh.Close()

	m := sh.OpenTransaction("")
	if err := m.Begin(txflow.Draft{From: opts.From, To: opts.To, Amount: amount}); err != nil {
		return "", err
	}

	failures := opts.Failures
	for {
		ok, err := submit(m)
		if err != nil {
			return m.State(), err
		}
		if !ok {
			break
		}

		if failures == 0 {
			if err := m.Send(txflow.Success{}); err != nil {
				return m.State(), err
			}
			break
		}
		failures--
		lastRetry = txflow.Transition{}
		if err := m.Send(txflow.Failure{Err: errors.New("transaction dropped from mempool")}); err != nil {
			return m.State(), err
		}

		if lastRetry.RetryScheduled {
			clock.Advance(lastRetry.RetryIn)
			continue
		}
		if !opts.ManualRetry {
			break
		}
		// 重试用尽: 模拟用户点击通知上的 Retry
		if !triggerRetry(sh) {
			break
		}
	}

	fmt.Fprintln(w)
	for _, n := range sh.Notifications.Visible() {
		fmt.Fprintln(w, renderNotification(n))
	}
	return m.State(), nil
}

// submit 从 inputting 推进到 pending，草稿无效时停在 inputting 并返回 false
func submit(m *txflow.Machine) (bool, error) {
	if err := m.Send(txflow.Validate{}); err != nil {
		return false, err
	}
	if err := m.Context().Draft().Validate(); err != nil {
		return false, m.Send(txflow.Invalid{Reason: err.Error()})
	}

	hash := make([]byte, 32)
	if _, err := rand.Read(hash); err != nil {
		return false, err
	}
	for _, ev := range []txflow.Event{
		txflow.Valid{}, txflow.Sign{}, txflow.Broadcast{},
		txflow.Submitted{TxHash: hexutil.Encode(hash)},
	} {
		if err := m.Send(ev); err != nil {
			return false, err
		}
	}
	return true, nil
}

func triggerRetry(sh *shell.Shell) bool {
	for _, n := range sh.Notifications.Visible() {
		if n.Action != nil {
			return sh.Notifications.Trigger(n.ID)
		}
	}
	return false
}
