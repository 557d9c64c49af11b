package usecase

import (
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focus_engine/internal/domain"
)

// DimDuration is how long the transient dim overlay is requested for.
// Its lifecycle is independent of the alert: it auto-clears downstream
// regardless of whether the alert is still active.
const DimDuration = 3 * time.Second

// ActionSelector maps a raised alert into an enforcement policy request.
// It only signals intent; actual process suspension and pixel dimming are
// delegated to external collaborators.
type ActionSelector struct {
	publisher Publisher
	logger    *zap.Logger
}

// NewActionSelector creates an action selector.
func NewActionSelector(publisher Publisher, logger *zap.Logger) *ActionSelector {
	return &ActionSelector{publisher: publisher, logger: logger}
}

// OnAlert emits the enforcement request matching the dim-or-block policy.
func (s *ActionSelector) OnAlert(alert *domain.Alert, dimInsteadOfBlock bool) {
	if dimInsteadOfBlock {
		s.publisher.Publish(domain.Event{
			Type:        domain.EventApplyDimEffect,
			DimDuration: DimDuration,
		})
		s.logger.Debug("dim effect requested", zap.Duration("duration", DimDuration))
		return
	}

	s.publisher.Publish(domain.Event{
		Type:    domain.EventRequestBlockIndication,
		AppName: alert.AppName,
	})
	s.logger.Debug("block indication requested", zap.String("app", alert.AppName))
}
