package pipeline

import (
	"slices"
	"time"

	"github.com/oszuidwest/zwfm-webmlive/internal/types"
)

// transitions lists the forward edges of the build lifecycle. Failed is
// reachable from every state except itself and is handled separately.
var transitions = map[types.PipelineState][]types.PipelineState{
	types.StateIdle:             {types.StateBuilt, types.StateStopped},
	types.StateBuilt:            {types.StateVideoSourceReady, types.StateStopped},
	types.StateVideoSourceReady: {types.StateEncoderReady, types.StateStopped},
	types.StateEncoderReady:     {types.StateVideoConnected, types.StateStopped},
	types.StateVideoConnected:   {types.StateAudioSourceReady, types.StateStopped},
	types.StateAudioSourceReady: {types.StateReady, types.StateStopped},
	types.StateReady:            {types.StateRunning, types.StateStopped},
	types.StateRunning:          {types.StateStopped},
	types.StateStopped:          {},
	types.StateFailed:           {},
}

// canTransition reports whether from -> to is a legal edge.
func canTransition(from, to types.PipelineState) bool {
	if to == types.StateFailed {
		return from != types.StateFailed
	}
	return slices.Contains(transitions[from], to)
}

// Transition records one state change of a builder.
type Transition struct {
	Pipeline string // ID of the builder
	From     types.PipelineState
	To       types.PipelineState
	Err      error // Set when To is StateFailed
	At       time.Time
}
