package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wallet-flow/internal/event"
	"wallet-flow/internal/service/mq"
	"wallet-flow/pkg/config"
	"wallet-flow/pkg/database"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "订阅并打印交易状态转移事件 (Online)",
	Long:  `按 config.yaml 中的 mq.type (redis / kafka) 连接消息队列，实时打印 flow-server 发布的事件。`,
	Run: func(cmd *cobra.Command, args []string) {
		group, _ := cmd.Flags().GetString("group")

		config.Init()
		cfg := config.Global

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var consumer mq.Consumer
		switch cfg.MQ.Type {
		case "kafka":
			if group == "" {
				group = cfg.Kafka.GroupID
			}
			consumer = mq.NewKafkaConsumer(cfg.Kafka.Brokers, group)
		case "redis":
			rdb, err := database.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				fmt.Printf("连接 Redis 失败: %v\n", err)
				os.Exit(1)
			}
			defer rdb.Close()
			if group == "" {
				group = "flow-cli"
			}
			host, _ := os.Hostname()
			consumer = mq.NewRedisConsumer(rdb, group, host)
		default:
			fmt.Printf("mq.type=%q 不支持订阅，请配置 redis 或 kafka\n", cfg.MQ.Type)
			os.Exit(1)
		}
		defer consumer.Close()

		fmt.Println(mutedStyle.Render(fmt.Sprintf("正在订阅 %s (%s)... Ctrl+C 退出", cfg.MQ.Topic, cfg.MQ.Type)))
		err := consumer.Subscribe(ctx, cfg.MQ.Topic, func(msg *mq.Message) error {
			var e event.TransactionTransitioned
			if err := json.Unmarshal(msg.Payload, &e); err != nil {
				fmt.Println(errorStyle.Render("无法解析事件: " + err.Error()))
				return nil
			}
			fmt.Println(renderEvent(e))
			return nil
		})
		if err != nil && ctx.Err() == nil {
			fmt.Printf("订阅失败: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("group", "", "消费者组，默认使用配置值")
}
