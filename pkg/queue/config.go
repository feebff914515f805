package queue

import "time"

// Config holds worker and transport settings.
type Config struct {
	Driver             string        `env:"QUEUE_DRIVER" envDefault:"memory"`
	PollInterval       time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`
	LockTimeout        time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"5m"`
	MaxConcurrentTasks int           `env:"QUEUE_MAX_CONCURRENT_TASKS" envDefault:"10"`
	Queues             []string      `env:"QUEUE_NAMES" envDefault:"default,notifications" envSeparator:","`
	AMQPURL            string        `env:"QUEUE_AMQP_URL"`
	AMQPExchange       string        `env:"QUEUE_AMQP_EXCHANGE" envDefault:"notifykit.tasks"`
	AMQPPrefetch       int           `env:"QUEUE_AMQP_PREFETCH" envDefault:"10"`
}
