package consts

import "time"

// Buffer sizes for various operations
const (
	// BufferSize64KB is 64 kilobytes
	BufferSize64KB = 64 * 1024
	// BufferSize256KB is 256 kilobytes
	BufferSize256KB = 256 * 1024
	// BufferSize1MB is 1 megabyte
	BufferSize1MB = 1024 * 1024
	// BufferSize10MB is 10 megabytes
	BufferSize10MB = 10 * 1024 * 1024
)

// LLM defaults
const (
	// DefaultMaxTokens is the default maximum tokens for LLM responses
	DefaultMaxTokens = 4096
	// DefaultTemperature is the sampling temperature used for test generation
	DefaultTemperature = 0.2
	// MaxStreamBufferBytes caps the accumulated size of one streaming response
	MaxStreamBufferBytes = BufferSize10MB
)

// Chunking and budgeting
const (
	// ChunkBudgetFraction is the share of a model's available tokens one chunk may use,
	// leaving the rest for prompt scaffolding and per-chunk context
	ChunkBudgetFraction = 0.5
	// PromptOverheadTokens is the fixed token allowance for prompt scaffolding
	PromptOverheadTokens = 600
	// RAGTruncateTokenCeiling is the token ceiling applied to retrieval context
	// during staged truncation
	RAGTruncateTokenCeiling = 2000
	// HistoryKeepRecent is how many conversation messages survive the first
	// truncation stage
	HistoryKeepRecent = 2
)

// Concurrency and retries
const (
	// DefaultMaxConcurrent bounds concurrent chunk requests against the provider
	DefaultMaxConcurrent = 3
	// DefaultMaxRetries is the number of additional attempts after a failed LLM call
	DefaultMaxRetries = 2
	// RetryBackoffBase is multiplied by the attempt number between retries
	RetryBackoffBase = 1 * time.Second
	// RequestQueueSize bounds the FIFO of pending generation requests
	RequestQueueSize = 16
)

// Timeouts
const (
	// DefaultLLMTimeout is the ceiling for one outbound LLM call
	DefaultLLMTimeout = 120 * time.Second
	// Timeout10Seconds is a 10 second timeout
	Timeout10Seconds = 10 * time.Second
	// Timeout60Seconds is a 60 second timeout
	Timeout60Seconds = 60 * time.Second
)

// Cache
const (
	// DefaultCacheTTL is how long a cached generation result stays valid
	DefaultCacheTTL = 30 * time.Minute
	// DefaultCacheMaxEntries bounds the in-memory generation cache
	DefaultCacheMaxEntries = 128
)
