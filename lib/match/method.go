package match

import (
	"fmt"
	"strings"
)

// Method describes how a result was found
type Method int

const (
	// MethodNone: no signature matched, the result has no profiles
	MethodNone Method = iota

	// MethodExact: the target is a signature string
	MethodExact

	// MethodClosest: several candidates scored equally, the tie-break picked one
	MethodClosest

	// MethodNearest: a single candidate had the best score
	MethodNearest

	// MethodNumeric: the result was resolved from a device id or by comparing version numbers
	MethodNumeric
)

var methodNames = []string{"None", "Exact", "Closest", "Nearest", "Numeric"}

func (m Method) String() string {
	if m >= 0 && int(m) < len(methodNames) {
		return methodNames[m]
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Method) UnmarshalText(text []byte) error {
	for i, name := range methodNames {
		if strings.EqualFold(name, string(text)) {
			*m = Method(i)
			return nil
		}
	}
	return fmt.Errorf("unknown match method %q", text)
}

// Methods lists all methods in order
var Methods = []Method{MethodNone, MethodExact, MethodClosest, MethodNearest, MethodNumeric}

// Stage identifies one step of the matching cascade
type Stage int

const (
	StageNone Stage = iota
	StageDeviceID
	StageExact
	StageEditDistance
	StageSegment
	StageVersion
	StageRIS
)

var stageNames = []string{"none", "device-id", "exact", "edit-distance", "segment", "version", "ris"}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	stage, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = stage
	return nil
}

// ParseStage parses a stage name ("" = StageNone)
func ParseStage(s string) (Stage, error) {
	if s == "" {
		return StageNone, nil
	}
	for i, name := range stageNames {
		if name == strings.ToLower(s) {
			return Stage(i), nil
		}
	}
	return StageNone, fmt.Errorf("unknown stage %q (expected one of: %s)", s, strings.Join(stageNames[1:], ", "))
}

// cascade is the order in which Match tries the stages
var cascade = []Stage{StageDeviceID, StageExact, StageEditDistance, StageSegment, StageVersion, StageRIS}
