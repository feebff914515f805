// Package queue moves work out of the request path.
//
// An Enqueuer turns payloads into Tasks and hands them to an
// EnqueuerRepository. Two transports are provided:
//
//   - MemoryStorage with a polling Worker, for single-process deployments and tests
//   - AMQPRepository with AMQPConsumer, publishing to a RabbitMQ topic exchange
//
// Handlers are registered by task name. NewTaskHandler derives the name from
// the payload type so that the producer and the consumer agree without extra
// configuration:
//
//	enq, _ := queue.NewEnqueuer(storage)
//	_ = enq.Enqueue(ctx, SendReport{ID: 42}, queue.WithQueue("reports"), queue.WithDelay(time.Minute))
//
//	w, _ := queue.NewWorker(storage, queue.WithQueues("reports"))
//	w.RegisterHandlers(queue.NewTaskHandler(func(ctx context.Context, p SendReport) error {
//		return reports.Send(ctx, p.ID)
//	}))
//	go w.Run(ctx)()
//
// A task is retried up to MaxRetries times. After that it lands in the dead
// letter queue (MemoryStorage) or is rejected without requeue (AMQP).
package queue
