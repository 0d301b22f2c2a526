// Command auditlog consumes chat audit records from Kafka and writes one text
// file per turn, grouped by intent.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"codehelp-go/internal/config"
	"codehelp-go/pkg/kafka"
	"codehelp-go/pkg/log"
	"codehelp-go/pkg/tasks"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "path to the YAML config file")
	dir := flag.String("dir", "logs", "root directory for per-intent turn logs")
	group := flag.String("group", "codehelp-auditlog", "kafka consumer group id")
	flag.Parse()

	config.Init(*configPath)
	cfg := config.Conf

	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()

	if cfg.Kafka.Brokers == "" {
		log.Fatalf("kafka.brokers is empty, nothing to consume")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := kafka.Consume(ctx, cfg.Kafka, *group, func(_ context.Context, record tasks.TurnRecord) error {
		path, err := tasks.WriteTurnLog(*dir, record)
		if err != nil {
			return err
		}
		log.Infof("[AuditLog] logged %s turn of %s to %s", record.Intent, record.ConversationID, path)
		return nil
	})
	if err != nil {
		log.Fatalf("audit consumer stopped: %v", err)
	}
	log.Info("audit consumer stopped")
}
