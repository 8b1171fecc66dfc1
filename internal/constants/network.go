package constants

import "time"

// 网络超时常量
const (
	DefaultRequestTimeout = 20000 * time.Millisecond

	DefaultDialTimeout           = 10 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 30 * time.Second
	DefaultExpectContinueTimeout = 1 * time.Second

	BaseMaxIdleConns        = 100
	BaseMaxIdleConnsPerHost = 10
)

const (
	DefaultParallelTranslationLimit = 10
	DefaultRequestDedupTTL          = 100 * time.Millisecond
	DefaultBatchDelay               = 50 * time.Millisecond
	MaxBatchSize                    = 100
)
