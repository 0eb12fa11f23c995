package internal

import "time"

type Config struct {
	LogLevel string `env:"LOG_LEVEL,default=info"`
	Host     string `env:"HOST,default=0.0.0.0"`

	SocketPort  int `env:"SOCKET_PORT,default=8080"`
	ApiPort     int `env:"API_PORT,default=8081"`
	MetricsPort int `env:"METRICS_PORT,default=9091"`
	DebugPort   int `env:"DEBUG_PORT,default=8089"`

	JwtSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	BadgerFilepath string `env:"BADGER_FILEPATH,default=./data/badger"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,default=./data/bluge"`

	EventBufferSize int `env:"EVENT_BUFFER_SIZE,default=1024"`

	// TypingTTL is how long a typing indicator survives without a refresh.
	TypingTTL           time.Duration `env:"TYPING_TTL,default=3s"`
	TypingSweepInterval time.Duration `env:"TYPING_SWEEP_INTERVAL,default=1s"`

	SinkTimeout  time.Duration `env:"SINK_TIMEOUT,default=2s"`
	PingInterval time.Duration `env:"PING_INTERVAL,default=30s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT,default=60s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,default=10s"`

	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s"`
	LowCapacityThreshold int           `env:"LOW_CAPACITY_THRESHOLD,default=20"`
}
