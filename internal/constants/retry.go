package constants

import "time"

// 重试策略常量
const (
	DefaultMaxRetries = 20

	// 429: linear backoff, capped
	RateLimitDelayStep = 1000 * time.Millisecond
	RateLimitDelayMax  = 5000 * time.Millisecond

	// 5xx / network errors: exponential backoff, capped
	ServerErrorDelayBase = 100 * time.Millisecond
	ServerErrorDelayMax  = 5000 * time.Millisecond

	// Counter persistence cadence for round-robin selection
	CounterPersistInterval = 100
)

// 熔断器默认值
const (
	DefaultCircuitFailureThreshold = 5
	DefaultCircuitSuccessThreshold = 2
	DefaultCircuitTimeout          = 60 * time.Second
)
