// Package diagnostics segments a raw launcher diagnostics blob into up to
// three independently authored layers: the container stderr tail, the
// runtime's structured self-report, and the launcher's own narrative.
//
// Segmentation is plain ordered substring search with index arithmetic.
// Regex engines are deliberately avoided here: the input is untrusted text
// of unbounded size, so it is capped before any scanning.
package diagnostics

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lanya16/pai/internal/apperrors"
)

// Anchor markers. Container markers are emitted by the launcher's shell
// wrapper; runtime markers by the in-container runtime's error reporter.
const (
	containerStartMarker = "ExitCodeException exitCode"
	containerEndMarker   = "at org.apache.hadoop.util.Shell.runCommand"
	runtimeStartMarker   = "[RUNTIME_ERROR_START]"
	runtimeEndMarker     = "[RUNTIME_ERROR_END]"
)

// maxInputBytes bounds the diagnostics text before segmentation.
const maxInputBytes = 64 << 10

// RuntimeReport is the runtime's structured self-report, parsed from the
// YAML document between the runtime error markers.
type RuntimeReport struct {
	OriginalUserExitCode int            `yaml:"originalUserExitCode" json:"originalUserExitCode"`
	Reason               string         `yaml:"reason" json:"reason"`
	Solution             string         `yaml:"solution" json:"solution"`
	Extras               map[string]any `yaml:",inline" json:"extras,omitempty"`
}

// Segments holds the extracted layers. Container and Runtime are nil when
// their markers are absent (or, for Runtime, when its payload is malformed).
// Launcher is empty only when the input itself is empty.
type Segments struct {
	Container *string        `json:"container,omitempty"`
	Runtime   *RuntimeReport `json:"runtime,omitempty"`
	Launcher  string         `json:"launcher,omitempty"`
}

// Extract segments raw diagnostics text. The returned error is non-nil only
// when the runtime segment was present but malformed; the other segments are
// still extracted, so callers log the error and use what they got.
func Extract(raw string) (Segments, error) {
	if len(raw) > maxInputBytes {
		raw = raw[:maxInputBytes]
	}

	var segs Segments
	segs.Container = extractContainer(raw)

	runtimeRaw, rest, found := cutRuntimeSpan(raw)
	segs.Launcher = strings.TrimSpace(rest)

	if !found {
		return segs, nil
	}
	var report RuntimeReport
	if err := yaml.Unmarshal([]byte(runtimeRaw), &report); err != nil {
		return segs, apperrors.Parse("diagnostics.runtime", err)
	}
	segs.Runtime = &report
	return segs, nil
}

// extractContainer returns the text strictly between the exit-code exception
// marker's colon and the shell stack-frame marker, or nil if either anchor
// is missing.
func extractContainer(raw string) *string {
	start := strings.Index(raw, containerStartMarker)
	if start < 0 {
		return nil
	}
	colon := strings.Index(raw[start:], ":")
	if colon < 0 {
		return nil
	}
	begin := start + colon + 1

	offset := strings.Index(raw[begin:], containerEndMarker)
	if offset < 0 {
		return nil
	}
	seg := strings.TrimSpace(raw[begin : begin+offset])
	return &seg
}

// cutRuntimeSpan splits raw into the payload between the runtime markers and
// the remaining text with the whole marked span removed.
func cutRuntimeSpan(raw string) (payload, rest string, found bool) {
	start := strings.Index(raw, runtimeStartMarker)
	if start < 0 {
		return "", raw, false
	}
	after := start + len(runtimeStartMarker)
	offset := strings.Index(raw[after:], runtimeEndMarker)
	if offset < 0 {
		return "", raw, false
	}
	payload = raw[after : after+offset]
	rest = raw[:start] + raw[after+offset+len(runtimeEndMarker):]
	return payload, rest, true
}
