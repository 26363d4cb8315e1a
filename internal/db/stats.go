package db

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// IngestStats keeps track of ingest counts
type IngestStats struct {
	sync.Mutex
	ReadingCount int
	AlertCount   int
	RejectCount  int
}

// NewIngestStats starts the periodic summary logger
func NewIngestStats(logger *zap.SugaredLogger) *IngestStats {
	stats := &IngestStats{}
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			stats.Lock()
			logger.Infow("ingest summary",
				"readings", stats.ReadingCount,
				"alerts", stats.AlertCount,
				"rejected", stats.RejectCount,
			)
			stats.Unlock()
		}
	}()
	return stats
}

// IncrementReading increments the accepted-reading counter
func (s *IngestStats) IncrementReading() {
	s.Lock()
	s.ReadingCount++
	s.Unlock()
}

// IncrementAlert increments the stored-alert counter
func (s *IngestStats) IncrementAlert() {
	s.Lock()
	s.AlertCount++
	s.Unlock()
}

// IncrementReject increments the rejected-call counter
func (s *IngestStats) IncrementReject() {
	s.Lock()
	s.RejectCount++
	s.Unlock()
}
