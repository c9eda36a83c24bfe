/*
 * Copyright 2025 Comcast Cable Communications Management, LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package listener

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeOverridesReplacesPort(t *testing.T) {
	got, err := mergeOverrides([]byte(`
listeners:
  - name: fmc650
    port: 7500
`))
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, 7500, got[0].Port)
	// sensor mapping untouched
	assert.Equal(t, FMC650.TempSensors, got[0].TempSensors)
	assert.Equal(t, FMC234, got[1])
}

func TestMergeOverridesAppendsNewProfile(t *testing.T) {
	got, err := mergeOverrides([]byte(`
listeners:
  - name: fmc130
    port: 1300
    tempSensors:
      - sensorId: 62
        readingId: 72
`))
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "fmc130", got[2].Name)
	assert.Equal(t, 1300, got[2].Port)
	assert.Equal(t, []TempSensorPair{{SensorID: 62, ReadingID: 72}}, got[2].TempSensors)
}

func TestMergeOverridesRejectsNewProfileWithoutPort(t *testing.T) {
	_, err := mergeOverrides([]byte(`
listeners:
  - name: fmc130
`))
	assert.Error(t, err)
}

func TestMergeOverridesRejectsMissingName(t *testing.T) {
	_, err := mergeOverrides([]byte(`
listeners:
  - port: 9999
`))
	assert.Error(t, err)
}
