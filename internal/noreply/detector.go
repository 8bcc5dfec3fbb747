package noreply

import (
	"strings"

	"go.uber.org/zap"
)

// DefaultMarkers are the substrings that identify a non-interactive sender
var DefaultMarkers = []string{"noreply", "no-reply"}

// Detector decides whether a sender address should never receive a reply
type Detector struct {
	markers []string
	logger  *zap.Logger
}

// NewDetector creates a new detector. An empty marker list falls back to
// DefaultMarkers.
func NewDetector(markers []string, logger *zap.Logger) *Detector {
	normalized := make([]string, 0, len(markers))
	for _, marker := range markers {
		if m := strings.ToLower(strings.TrimSpace(marker)); m != "" {
			normalized = append(normalized, m)
		}
	}
	if len(normalized) == 0 {
		normalized = append(normalized, DefaultMarkers...)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Detector{
		markers: normalized,
		logger:  logger,
	}
}

// IsNoReply reports whether the address contains one of the markers,
// ignoring case. Only the address is inspected, never the display name.
func (d *Detector) IsNoReply(address string) bool {
	addr := strings.ToLower(address)
	for _, marker := range d.markers {
		if strings.Contains(addr, marker) {
			d.logger.Debug("Sender is a no-reply address",
				zap.String("sender", address),
				zap.String("marker", marker))
			return true
		}
	}
	return false
}
