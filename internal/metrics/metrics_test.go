package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oszuidwest/zwfm-webmlive/internal/types"
)

func TestObserveTransition(t *testing.T) {
	before := testutil.ToFloat64(PipelineTransitionsTotal.WithLabelValues(string(types.StateBuilt)))

	ObserveTransition(types.StateIdle, types.StateBuilt, nil)

	assert.InDelta(t, before+1, testutil.ToFloat64(PipelineTransitionsTotal.WithLabelValues(string(types.StateBuilt))), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(PipelineState.WithLabelValues(string(types.StateBuilt))), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(PipelineState.WithLabelValues(string(types.StateIdle))), 0)
}

func TestObserveFailure(t *testing.T) {
	kind := PipelineFailuresTotal.WithLabelValues(string(types.KindNoVideoSource))
	unknown := PipelineFailuresTotal.WithLabelValues("unknown")
	beforeKind := testutil.ToFloat64(kind)
	beforeUnknown := testutil.ToFloat64(unknown)

	cause := types.NewError(types.KindNoVideoSource, "acquire video source",
		types.Errorf(types.KindNoDeviceFound, "enumerate devices", "no video capture devices"))
	ObserveTransition(types.StateBuilt, types.StateFailed, cause)
	ObserveTransition(types.StateReady, types.StateFailed, errors.New("plain"))

	assert.InDelta(t, beforeKind+1, testutil.ToFloat64(kind), 0)
	assert.InDelta(t, beforeUnknown+1, testutil.ToFloat64(unknown), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(PipelineState.WithLabelValues(string(types.StateBuilt))), 0)
}

func TestObserveEnumeration(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		result string
	}{
		{"devices found", nil, ResultOK},
		{"no devices", types.Errorf(types.KindNoDeviceFound, "enumerate devices", "none"), ResultEmpty},
		{"probe failed", errors.New("timeout"), ResultError},
		{"listing failed", types.NewError(types.KindEnumerationFailed, "enumerate devices", errors.New("probe timed out")), ResultError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DeviceEnumerationsTotal.WithLabelValues(string(types.CategoryAudioCapture), tt.result)
			before := testutil.ToFloat64(c)

			ObserveEnumeration(types.CategoryAudioCapture, 120*time.Millisecond, tt.err)

			assert.InDelta(t, before+1, testutil.ToFloat64(c), 0)
		})
	}
}

func TestExposition(t *testing.T) {
	ObserveEnumeration(types.CategoryVideoCapture, time.Second, nil)
	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	count, err := testutil.GatherAndCount(prometheus.DefaultGatherer, "webmlive_device_enumeration_duration_seconds")
	require.NoError(t, err)
	assert.Positive(t, count)
}
