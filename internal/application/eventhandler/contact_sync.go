package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/legacy-quest/progression-engine/internal/application/command"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/internal/infrastructure/external/marketing"
	"github.com/legacy-quest/progression-engine/pkg/logger"
	"github.com/legacy-quest/progression-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTACT SYNC
// ══════════════════════════════════════════════════════════════════════════════

// ContactPusher delivers a contact snapshot. *marketing.Client satisfies it.
type ContactPusher interface {
	UpsertContact(ctx context.Context, contact marketing.Contact) error
}

// ContactSyncHandler pushes a contact snapshot on every signup. Failures
// are counted and logged but never fail the signup or reach the dead
// letter queue; the client already retried them.
type ContactSyncHandler struct {
	pusher   ContactPusher
	flags    command.FeatureFlags
	recorder command.Recorder
	timeout  time.Duration
	log      *logger.Logger
}

// ContactSyncConfig configures ContactSyncHandler.
type ContactSyncConfig struct {
	Flags    command.FeatureFlags
	Recorder command.Recorder
	Timeout  time.Duration
	Logger   *logger.Logger
}

// NewContactSyncHandler creates a new ContactSyncHandler.
func NewContactSyncHandler(pusher ContactPusher, config ContactSyncConfig) *ContactSyncHandler {
	if config.Flags == nil {
		config.Flags = command.AllFlagsEnabled
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.Logger == nil {
		config.Logger = logger.Discard()
	}
	return &ContactSyncHandler{
		pusher:   pusher,
		flags:    config.Flags,
		recorder: config.Recorder,
		timeout:  config.Timeout,
		log:      config.Logger.With(logger.Component("contact_sync")),
	}
}

// Handle pushes the signed-up profile. The contact id is the identity
// fingerprint.
func (h *ContactSyncHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.ProfileSignedUpEvent)
	if !ok {
		return retry.Permanent(fmt.Errorf("contact sync: unexpected event %T", event))
	}
	if !h.flags.IsEnabled(command.FlagMarketingSync, e.AggregateID()) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	err := h.pusher.UpsertContact(ctx, marketing.Contact{
		ContactID:   e.Fingerprint,
		Email:       e.Email,
		Source:      e.Source,
		Streak:      e.Streak,
		TotalXP:     e.TotalXP,
		Level:       e.Level,
		Existing:    e.IsExisting,
		SubscribeAt: e.OccurredAt(),
	})
	switch {
	case err == nil:
		h.log.Debug("contact synced", logger.String("contact_id", e.Fingerprint))
	case errors.Is(err, marketing.ErrDisabled):
	default:
		if h.recorder != nil {
			h.recorder.SyncFailure("marketing")
		}
		h.log.Warn("contact sync failed",
			logger.String("contact_id", e.Fingerprint),
			logger.Err(err),
		)
	}
	return nil
}
