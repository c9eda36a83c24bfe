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
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type overridesFile struct {
	Listeners []Listener `yaml:"listeners"`
}

// LoadOverrides merges a YAML profile file over the built-in profiles.
// Entries with a known name replace that profile (empty fields keep the
// built-in value); unknown names are appended as new profiles.
func LoadOverrides(path string) ([]Listener, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading listener overrides: %w", err)
	}
	return mergeOverrides(buf)
}

func mergeOverrides(buf []byte) ([]Listener, error) {
	var f overridesFile
	if err := yaml.Unmarshal(buf, &f); err != nil {
		return nil, fmt.Errorf("parsing listener overrides: %w", err)
	}

	merged := Defaults()
	for _, o := range f.Listeners {
		if o.Name == "" {
			return nil, fmt.Errorf("listener override without a name")
		}

		idx := -1
		for i, l := range merged {
			if l.Name == o.Name {
				idx = i
				break
			}
		}

		if idx == -1 {
			if o.Port == 0 {
				return nil, fmt.Errorf("new listener %q needs a port", o.Name)
			}
			merged = append(merged, o)
			continue
		}

		if o.Port != 0 {
			merged[idx].Port = o.Port
		}
		if len(o.TempSensors) > 0 {
			merged[idx].TempSensors = o.TempSensors
		}
	}

	return merged, nil
}
