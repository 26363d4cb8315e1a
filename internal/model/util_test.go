package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringFloat64AcceptsNumberAndString(t *testing.T) {
	var s StringFloat64

	require.NoError(t, json.Unmarshal([]byte(`230.5`), &s))
	assert.Equal(t, StringFloat64(230.5), s)

	require.NoError(t, json.Unmarshal([]byte(`"230.5"`), &s))
	assert.Equal(t, StringFloat64(230.5), s)
}

func TestStringFloat64RejectsGarbage(t *testing.T) {
	var s StringFloat64

	assert.Error(t, json.Unmarshal([]byte(`"not-a-number"`), &s))
	assert.Error(t, json.Unmarshal([]byte(`true`), &s))
	assert.Error(t, json.Unmarshal([]byte(`{"v":1}`), &s))
}

func TestSensorPayloadDefaultsMissingFieldsToZero(t *testing.T) {
	var p SensorPayload
	require.NoError(t, json.Unmarshal([]byte(`{"current":6,"power":"20"}`), &p))

	assert.Equal(t, 6.0, p.Current.Value())
	assert.Equal(t, 20.0, p.Power.Value())
	assert.Zero(t, p.Voltage.Value())
	assert.Zero(t, p.LDR.Value())
	assert.Zero(t, p.PIR.Value())
}

func TestMotionPresent(t *testing.T) {
	assert.False(t, Reading{PIR: 0}.MotionPresent())
	assert.True(t, Reading{PIR: 1}.MotionPresent())
}
