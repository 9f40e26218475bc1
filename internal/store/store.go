// Package store persists the shared state of the approval pipeline: registered
// approval chats, guest access requests, the notification messages broadcast
// for each request, and the final confirmations.
//
// The store is the only synchronization point between the guest portal and the
// Telegram worker. Every implementation must be safe for concurrent use and
// must make ClaimDispatch and RecordConfirmation atomic: for any request, at
// most one caller wins each of those two races.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a request or confirmation does not exist.
	ErrNotFound = errors.New("not found")

	// ErrChannelExists is returned when registering an already-registered chat.
	ErrChannelExists = errors.New("channel already registered")

	// ErrAlreadyConfirmed is returned when a second decision is recorded for
	// the same request.
	ErrAlreadyConfirmed = errors.New("request already confirmed")
)

// Channel is a chat registered to receive approval prompts.
type Channel struct {
	ChatID string
}

// Request is one guest's pending ask for network access.
type Request struct {
	ID         string
	Name       string
	MAC        string
	Dispatched bool
}

// SentNotification records one approval prompt sent to one chat, keeping the
// message handle needed to edit that message once a decision lands.
type SentNotification struct {
	RequestID string
	ChatID    string
	MessageID string
}

// Confirmation is the recorded outcome for a request. DurationMinutes > 0
// grants access for that many minutes; anything else is a denial.
type Confirmation struct {
	RequestID       string
	DurationMinutes int
	Approver        string
}

// Store is the persistence contract shared by both workers.
type Store interface {
	// AddChannel registers a chat. Returns ErrChannelExists if already present.
	AddChannel(ctx context.Context, chatID string) error

	// ListChannels returns all registered chats.
	ListChannels(ctx context.Context) ([]Channel, error)

	// AddRequest persists a new, undispatched request.
	AddRequest(ctx context.Context, id, name, mac string) error

	// ListUndispatched returns requests not yet broadcast, in insertion order.
	ListUndispatched(ctx context.Context) ([]Request, error)

	// ClaimDispatch atomically flips the dispatched flag. It returns true for
	// exactly one caller per request; false means another worker already
	// claimed it and the caller must not broadcast.
	ClaimDispatch(ctx context.Context, id string) (bool, error)

	// RecordNotification stores the message handle for one broadcast prompt.
	RecordNotification(ctx context.Context, requestID, chatID, messageID string) error

	// ListNotifications returns every prompt sent for a request.
	ListNotifications(ctx context.Context, requestID string) ([]SentNotification, error)

	// GetRequest returns a request by id, or ErrNotFound.
	GetRequest(ctx context.Context, id string) (*Request, error)

	// RecordConfirmation stores the decision for a request. It succeeds for at
	// most one caller per request; later callers get ErrAlreadyConfirmed.
	RecordConfirmation(ctx context.Context, requestID string, durationMinutes int, approver string) error

	// GetConfirmation returns the decision for a request, or ErrNotFound.
	GetConfirmation(ctx context.Context, requestID string) (*Confirmation, error)

	// Close releases any underlying resources.
	Close() error
}
