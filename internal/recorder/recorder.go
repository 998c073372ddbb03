// Package recorder persists the outcome of accepted resolutions as
// verification metadata on the matched registry entry.
package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/entityres/internal/storage"
	"github.com/dshills/entityres/pkg/types"
)

// DefaultThreshold is the lowest confidence that confirms an entry
const DefaultThreshold = 0.7

// Recorder writes verification metadata. Writes never fail a resolution:
// storage errors are logged and dropped.
type Recorder struct {
	registry  storage.Registry
	threshold float64
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a Recorder. A non-positive threshold selects DefaultThreshold.
func New(registry storage.Registry, threshold float64, logger *zap.Logger) *Recorder {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		registry:  registry,
		threshold: threshold,
		logger:    logger,
		now:       time.Now,
	}
}

// Record marks id verified when confidence reaches the threshold and appends
// an audit event. It reports whether anything was written.
func (r *Recorder) Record(ctx context.Context, id string, method types.Method, confidence float64) bool {
	if id == "" || method == types.MethodUnmatched {
		return false
	}
	if confidence < r.threshold {
		r.logger.Debug("confidence below verification threshold",
			zap.String("entry_id", id),
			zap.Float64("confidence", confidence))
		return false
	}

	event := &storage.VerificationEvent{
		ID:         uuid.NewString(),
		EntryID:    id,
		Method:     method,
		Confidence: confidence,
		CreatedAt:  r.now().UTC(),
	}
	if err := r.registry.RecordVerification(ctx, event); err != nil {
		r.logger.Warn("verification write failed",
			zap.String("entry_id", id),
			zap.String("method", string(method)),
			zap.Error(fmt.Errorf("%w: %v", types.ErrRecorder, err)))
		return false
	}

	r.logger.Debug("entry verified",
		zap.String("entry_id", id),
		zap.String("method", string(method)),
		zap.Float64("confidence", confidence),
		zap.String("event_id", event.ID))
	return true
}
