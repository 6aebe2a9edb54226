package main

import (
	"errors"
	"fmt"

	"arc72scan/internal/infrastructure/telemetry"
	"arc72scan/internal/streaming"

	"github.com/segmentio/kafka-go"
	"github.com/urfave/cli/v2"
)

func streamTailCommand() *cli.Command {
	return &cli.Command{
		Name:  "tail",
		Usage: "Follow the Kafka round stream of the configured network",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "group", Usage: "consumer group; empty reads without committing"},
			&cli.BoolFlag{Name: "from-beginning", Usage: "start at the oldest retained message"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c, false)
			if err != nil {
				return err
			}
			if len(cfg.KafkaBrokers) == 0 {
				return errors.New("KAFKA_BROKERS is required")
			}
			topic := cfg.KafkaTopicPrefix + "-" + cfg.Network
			readerCfg := kafka.ReaderConfig{
				Brokers:  cfg.KafkaBrokers,
				GroupID:  c.String("group"),
				Topic:    topic,
				MinBytes: 1,
				MaxBytes: 10e6,
			}
			if readerCfg.GroupID == "" && !c.Bool("from-beginning") {
				readerCfg.StartOffset = kafka.LastOffset
			}
			reader := kafka.NewReader(readerCfg)
			defer reader.Close()

			for {
				message, err := reader.ReadMessage(c.Context)
				if err != nil {
					if c.Context.Err() != nil {
						return nil
					}
					return err
				}
				decoded, err := streaming.Decode(message.Value)
				if err != nil {
					fmt.Fprintf(c.App.ErrWriter, "skipping offset %d: %v\n", message.Offset, err)
					continue
				}
				if decoded.TraceID == "" {
					decoded.TraceID = telemetry.TraceIDFromContext(telemetry.ExtractKafkaHeaders(c.Context, message.Headers))
				}
				if c.Bool("json") {
					if err := printJSON(c.App.Writer, decoded); err != nil {
						return err
					}
					continue
				}
				printMessage(c, decoded)
			}
		},
	}
}

func printMessage(c *cli.Context, msg streaming.Message) {
	switch msg.Type {
	case streaming.MessageTypeTransfer:
		fmt.Fprintf(c.App.Writer, "round %d transfer app=%d token=%s owner=%s\n", msg.Round, msg.ContractID, msg.TokenID, msg.Owner)
	case streaming.MessageTypeRound:
		fmt.Fprintf(c.App.Writer, "round %d done txns=%d candidates=%d accepted=%d\n", msg.Round, msg.Transactions, msg.Candidates, msg.Accepted)
	default:
		fmt.Fprintf(c.App.Writer, "round %d %s\n", msg.Round, msg.Type)
	}
}
