package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"ai-chatbot/internal/model"
	"ai-chatbot/internal/repository"
)

// LoginAuditWorker consumes login audit records from the queue and writes
// them to the append-only audit table. Persisting audits off the login
// path keeps authentication latency independent of audit writes.
type LoginAuditWorker struct {
	conn      *amqp.Connection
	repo      *repository.LoginAuditRepository
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewLoginAuditWorker(conn *amqp.Connection, repo *repository.LoginAuditRepository, queueName string) *LoginAuditWorker {
	return &LoginAuditWorker{
		conn:      conn,
		repo:      repo,
		queueName: queueName,
	}
}

func (w *LoginAuditWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var audit model.LoginAudit
				if err := json.Unmarshal(d.Body, &audit); err != nil {
					log.Printf("worker decode audit failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := w.repo.Create(&audit); err != nil {
					log.Printf("worker persist audit failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *LoginAuditWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
