// Package device discovers capture devices and instantiates them as graph nodes.
package device

import (
	"log/slog"

	"github.com/oszuidwest/zwfm-webmlive/internal/media"
	"github.com/oszuidwest/zwfm-webmlive/internal/types"
)

// Lister is the part of the media framework that lists devices.
type Lister interface {
	Devices(category types.Category) ([]media.Moniker, error)
}

// Enumerator lists and selects capture devices.
// Every call enumerates from scratch; indices are never cached.
type Enumerator struct {
	lister Lister
}

// NewEnumerator returns an Enumerator backed by the given lister.
func NewEnumerator(l Lister) *Enumerator {
	return &Enumerator{lister: l}
}

// entry is a usable device found during one enumeration pass.
type entry struct {
	moniker media.Moniker
	name    string
}

// Enumerate returns the named devices of a category in enumeration order.
// Devices without a readable FriendlyName are skipped. An empty result is
// reported as an error of kind NoDeviceFound; a listing that could not run
// at all is reported as EnumerationFailed.
func (e *Enumerator) Enumerate(category types.Category) ([]types.Device, error) {
	entries, err := e.scan(category)
	if err != nil {
		return []types.Device{}, err
	}

	devices := make([]types.Device, len(entries))
	for i, en := range entries {
		devices[i] = types.Device{Index: i, Name: en.name}
	}
	return devices, nil
}

// Select re-enumerates the category and binds the device at index.
func (e *Enumerator) Select(category types.Category, index int) (media.Node, types.Device, error) {
	const op = "select device"

	entries, err := e.scan(category)
	if err != nil {
		return nil, types.Device{}, err
	}

	if index < 0 || index >= len(entries) {
		slog.Error("device index out of range", "category", category, "index", index, "available", len(entries))
		return nil, types.Device{}, types.Errorf(types.KindInvalidIndex, op,
			"index %d with %d %s devices", index, len(entries), category)
	}

	en := entries[index]
	node, err := en.moniker.Bind()
	if err != nil {
		slog.Error("failed to bind device", "category", category, "index", index, "name", en.name, "error", err)
		return nil, types.Device{}, types.NewError(types.KindCreationFailed, op, err)
	}
	if node == nil {
		return nil, types.Device{}, types.Errorf(types.KindCreationFailed, op, "device %q bound to no node", en.name)
	}

	return node, types.Device{Index: index, Name: en.name}, nil
}

// scan runs one enumeration pass and keeps the devices that report a name.
func (e *Enumerator) scan(category types.Category) ([]entry, error) {
	const op = "enumerate devices"

	if !category.Valid() {
		return nil, types.Errorf(types.KindInvalidArgument, op, "unknown device category %q", category)
	}

	monikers, err := e.lister.Devices(category)
	if err != nil {
		slog.Error("device enumeration failed", "category", category, "error", err)
		return nil, types.NewError(types.KindEnumerationFailed, op, err)
	}

	var entries []entry
	for i, m := range monikers {
		if m == nil {
			continue
		}
		props, err := m.Properties()
		if err != nil || props == nil {
			slog.Debug("device has no property bag, skipping", "category", category, "source", i, "error", err)
			continue
		}
		name, ok := props.Read(media.PropertyFriendlyName)
		if !ok || name == "" {
			slog.Debug("device has no friendly name, skipping", "category", category, "source", i)
			continue
		}
		entries = append(entries, entry{moniker: m, name: name})
	}

	slog.Debug("done enumerating devices", "category", category, "found", len(entries), "listed", len(monikers))

	if len(entries) == 0 {
		return nil, types.Errorf(types.KindNoDeviceFound, op, "no %s capture devices", category)
	}
	return entries, nil
}

// Log writes the device list the way the builder reports it, numbered from 1.
func Log(category types.Category, devices []types.Device) {
	for _, d := range devices {
		slog.Info("capture device", "category", category, "number", d.Index+1, "name", d.Name)
	}
}
