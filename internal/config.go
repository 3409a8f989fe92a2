package internal

import "time"

type Config struct {
	DispatchShards    int           `env:"DISPATCH_SHARDS,required=true"`
	ShardBufferSize   int           `env:"SHARD_BUFFER_SIZE,required=true"`
	OutboundQueueSize int           `env:"OUTBOUND_QUEUE_SIZE,required=true"`
	TailBatchSize     int           `env:"TAIL_BATCH_SIZE,required=true"`
	PollInterval      time.Duration `env:"POLL_INTERVAL,required=true"`
	SinkTimeout       time.Duration `env:"SINK_TIMEOUT,required=true"`
	CatchupTimeout    time.Duration `env:"CATCHUP_TIMEOUT,required=true"`
	RetentionWindow   time.Duration `env:"RETENTION_WINDOW,required=true"`
	RetentionInterval time.Duration `env:"RETENTION_INTERVAL,required=true"`
	TelemetryInterval time.Duration `env:"TELEMETRY_INTERVAL,required=true"`

	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	JWTSecret         string        `env:"JWT_SECRET,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`
}
