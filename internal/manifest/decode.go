package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotObject = errors.New("manifest: document is not a JSON object")

// Decode parses a manifest document. It only fails when data is not a JSON
// object at all; a section with the wrong shape marks the result Faulted
// instead, so the caller still gets a (empty) playlist rather than an error.
func Decode(data []byte) (Manifest, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return Manifest{}, ErrNotObject
	}
	var raw struct {
		Defaults  json.RawMessage `json:"defaults"`
		Overrides json.RawMessage `json:"overrides"`
		Files     json.RawMessage `json:"files"`
		Items     json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrNotObject, err)
	}

	var m Manifest
	var faults []error
	section := func(name string, msg json.RawMessage, dst any) {
		if len(msg) == 0 || string(msg) == "null" {
			return
		}
		if err := json.Unmarshal(msg, dst); err != nil {
			faults = append(faults, fmt.Errorf("%s: %w", name, err))
		}
	}
	section("defaults", raw.Defaults, &m.Defaults)
	section("overrides", raw.Overrides, &m.Overrides)
	section("files", raw.Files, &m.Files)
	section("items", raw.Items, &m.Items)

	if len(faults) > 0 {
		m.Faulted = true
		return m, &FaultError{Errs: faults}
	}
	return m, nil
}

// FaultError lists the sections of a manifest that could not be decoded. It
// is returned together with a usable, Faulted manifest.
type FaultError struct {
	Errs []error
}

func (e *FaultError) Error() string {
	return "manifest: " + errors.Join(e.Errs...).Error()
}

func (e *FaultError) Unwrap() []error { return e.Errs }
