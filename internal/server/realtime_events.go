package server

import (
	"context"
	"time"

	"devconnector/internal/featureflags"
	"devconnector/internal/middleware"
	"devconnector/internal/notifications"
	"devconnector/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// Event type constants prevent typos in event names.
const (
	EventPostCreated         = "post_created"
	EventPostDeleted         = "post_deleted"
	EventPostLikesUpdated    = "post_likes_updated"
	EventPostCommentsUpdated = "post_comments_updated"

	// Sent only to the post's author.
	EventPostLiked     = "post_liked"
	EventPostCommented = "post_commented"
)

const publishTimeout = 2 * time.Second

// eventsEnabled reports whether the caller's actions produce events.
func (s *Server) eventsEnabled(c *fiber.Ctx) bool {
	if s.notifier == nil {
		return false
	}
	actor, _ := middleware.UserID(c)
	return !s.flags.Defined(featureflags.PostEvents) || s.flags.Enabled(featureflags.PostEvents, actor)
}

// publishBroadcastEvent announces a post change made by the caller of c.
// Delivery is best effort: failures are logged and never reach the client.
// An explicitly configured post_events flag can switch it off per user.
func (s *Server) publishBroadcastEvent(c *fiber.Ctx, eventType string, payload any) {
	observability.PostEvents.WithLabelValues(eventType).Inc()
	if !s.eventsEnabled(c) {
		return
	}

	message, err := notifications.EncodeEvent(eventType, payload)
	if err != nil {
		middleware.Logger.Error("failed to encode event", "type", eventType, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.notifier.PublishBroadcast(ctx, message); err != nil {
		observability.RedisErrorRate.WithLabelValues("publish").Inc()
		middleware.Logger.Warn("failed to publish broadcast event", "type", eventType, "error", err)
	}
}

// publishUserEvent notifies recipient about something the caller did to
// their post. Acting on your own post sends nothing.
func (s *Server) publishUserEvent(c *fiber.Ctx, recipient, eventType string, payload any) {
	actor, _ := middleware.UserID(c)
	if recipient == "" || recipient == actor {
		return
	}
	observability.PostEvents.WithLabelValues(eventType).Inc()
	if !s.eventsEnabled(c) {
		return
	}

	message, err := notifications.EncodeEvent(eventType, payload)
	if err != nil {
		middleware.Logger.Error("failed to encode event", "type", eventType, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.notifier.PublishUser(ctx, recipient, message); err != nil {
		observability.RedisErrorRate.WithLabelValues("publish").Inc()
		middleware.Logger.Warn("failed to publish user event", "type", eventType, "user_id", recipient, "error", err)
	}
}
