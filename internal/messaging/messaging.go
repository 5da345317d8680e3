// Package messaging defines the request/response contract between the
// browser extension and the daemon, and the sender-checked handler that
// turns cleaning requests into Coordinator calls.
package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/bookmarkd/internal/cleaning"
	"github.com/fyrsmithlabs/bookmarkd/internal/logging"
	"github.com/fyrsmithlabs/bookmarkd/internal/rules"
	"go.uber.org/zap"
)

var (
	// ErrUntrustedSender is returned when the sender is not the configured extension.
	ErrUntrustedSender = errors.New("untrusted sender")

	// ErrUnknownMessage is returned for message types the daemon does not handle.
	ErrUnknownMessage = errors.New("unknown message type")
)

// Message types.
const (
	TypeCleanBookmarks = "clean.bookmarks"
	TypeCleanHistory   = "clean.history"
)

// Message is a request from the extension.
type Message struct {
	Type string `json:"type"`
}

// Response answers a cleaning request.
type Response struct {
	Status cleaning.Status `json:"status"`
}

// Sender identifies the peer a message came from.
type Sender struct {
	ID string
}

// Cleaner starts cleaning passes.
type Cleaner interface {
	RequestClean(ctx context.Context, category rules.Category) (cleaning.Status, error)
}

// Handler dispatches messages from the trusted sender.
type Handler struct {
	trustedID string
	cleaner   Cleaner
	logger    *logging.Logger
}

// NewHandler creates a Handler accepting messages from trustedID only.
func NewHandler(trustedID string, cleaner Cleaner, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		trustedID: trustedID,
		cleaner:   cleaner,
		logger:    logger.Named("messaging"),
	}
}

// Trusts reports whether sender is the configured extension. An untrusted
// sender is logged with what it asked for.
func (h *Handler) Trusts(ctx context.Context, sender Sender, request string) bool {
	if sender.ID == h.trustedID && h.trustedID != "" {
		return true
	}
	ctx = logging.WithSenderID(ctx, sender.ID)
	h.logger.Warn(ctx, "received message from unknown sender", zap.String("type", request))
	return false
}

// Handle processes msg. Messages from any sender other than the trusted one
// are logged and dropped with ErrUntrustedSender and a nil response.
func (h *Handler) Handle(ctx context.Context, sender Sender, msg Message) (*Response, error) {
	if !h.Trusts(ctx, sender, msg.Type) {
		return nil, ErrUntrustedSender
	}
	ctx = logging.WithSenderID(ctx, sender.ID)

	var category rules.Category
	switch msg.Type {
	case TypeCleanBookmarks:
		category = rules.CategoryBookmarks
	case TypeCleanHistory:
		category = rules.CategoryHistory
	default:
		h.logger.Debug(ctx, "ignoring message", zap.String("type", msg.Type))
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}

	status, err := h.cleaner.RequestClean(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("requesting %s cleaning: %w", category, err)
	}
	return &Response{Status: status}, nil
}
