package logging

import (
	"time"

	"go.uber.org/zap"
)

// RangeFields returns the fields describing a served byte interval.
//
// Example:
//
//	logger.Info("range served", logging.RangeFields(100, 199, 10000)...)
func RangeFields(start, end, size int64) []zap.Field {
	return []zap.Field{
		zap.Int64("byte_start", start),
		zap.Int64("byte_end", end),
		zap.Int64("file_size", size),
	}
}

// StreamFields returns the fields logged when a stream finishes.
func StreamFields(resourceID int64, status int, bytesSent int64, elapsed time.Duration) []zap.Field {
	return []zap.Field{
		zap.Int64("resource_id", resourceID),
		zap.Int("status", status),
		zap.Int64("bytes_sent", bytesSent),
		zap.Duration("duration", elapsed),
	}
}
