package server

import (
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/oszuidwest/zwfm-webmlive/internal/metrics"
	"github.com/oszuidwest/zwfm-webmlive/internal/types"
)

// SharedLister lets concurrent requests for the same category share one
// enumeration. Requests that arrive after it finished start a new one, so
// results are never older than the request.
type SharedLister struct {
	lister DeviceLister
	group  singleflight.Group
}

// NewSharedLister wraps l.
func NewSharedLister(l DeviceLister) *SharedLister {
	return &SharedLister{lister: l}
}

// Enumerate implements DeviceLister.
func (s *SharedLister) Enumerate(category types.Category) ([]types.Device, error) {
	v, err, shared := s.group.Do(string(category), func() (any, error) {
		start := time.Now()
		devices, err := s.lister.Enumerate(category)
		metrics.ObserveEnumeration(category, time.Since(start), err)
		return devices, err
	})
	if shared {
		slog.Debug("shared device enumeration", "category", category)
	}
	devices, _ := v.([]types.Device)
	return slices.Clone(devices), err
}
