// Package notify publishes intervention prompts over MQTT so the UI shell
// and demo dashboard can react without polling the API. Payloads carry ids,
// days, and timestamps only — never vitals values or event titles.
package notify

import (
	"encoding/json"
	"fmt"
	"time"
)

// Topic layout: per-user prompt topics plus a shared lifecycle topic.
const (
	TopicSystem = "omtobe/system"

	topicBrakeFmt      = "omtobe/%s/brake"
	topicReflectionFmt = "omtobe/%s/reflection"
)

// BrakeTopic returns the brake-prompt topic for a user.
func BrakeTopic(userID string) string {
	return fmt.Sprintf(topicBrakeFmt, userID)
}

// ReflectionTopic returns the reflection-prompt topic for a user.
func ReflectionTopic(userID string) string {
	return fmt.Sprintf(topicReflectionFmt, userID)
}

// Publisher fans out intervention prompts. Implementations must not crash
// the process on broker failure; publishing is best-effort.
type Publisher interface {
	// PublishBrake announces that the brake screen should display for a user.
	PublishBrake(event BrakeEvent) error

	// PublishReflection announces that the reflection window is open.
	PublishReflection(event ReflectionEvent) error

	// PublishSystem sends a lifecycle event (startup, shutdown, heartbeat).
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// BrakeEvent is the brake-prompt payload.
type BrakeEvent struct {
	UserID    string    `json:"-"`
	EventID   string    `json:"event_id"`
	Day       int       `json:"day"`
	Timestamp time.Time `json:"timestamp"`
	RecheckAt time.Time `json:"recheck_at,omitzero"` // set on Delay hints
}

// ReflectionEvent is the reflection-prompt payload.
type ReflectionEvent struct {
	UserID     string    `json:"-"`
	Day        int       `json:"day"`
	CycleStart time.Time `json:"cycle_start"`
	Timestamp  time.Time `json:"timestamp"`
}

// SystemEvent is a controller lifecycle event.
type SystemEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`            // "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason    string    `json:"reason,omitempty"` // e.g. "SIGTERM"
}

// FormatBrake creates the JSON payload for a brake event.
func FormatBrake(event BrakeEvent) ([]byte, error) {
	return json.Marshal(event)
}

// FormatReflection creates the JSON payload for a reflection event.
func FormatReflection(event ReflectionEvent) ([]byte, error) {
	return json.Marshal(event)
}

// FormatSystem creates the JSON payload for a system event.
func FormatSystem(event SystemEvent) ([]byte, error) {
	return json.Marshal(event)
}
