package visit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ToothDx maps a tooth identifier ("18", "55") to its ordered diagnosis
// labels.
type ToothDx map[string][]string

// ParseToothDx decodes a stored tooth-diagnosis blob. Blank input is an
// empty map. On malformed input an empty map is returned with the error.
func ParseToothDx(raw string) (ToothDx, error) {
	if strings.TrimSpace(raw) == "" {
		return ToothDx{}, nil
	}
	var dx ToothDx
	if err := json.Unmarshal([]byte(raw), &dx); err != nil {
		return ToothDx{}, fmt.Errorf("parse tooth dx: %w", err)
	}
	if dx == nil {
		dx = ToothDx{}
	}
	return dx, nil
}

// JSON returns the canonical encoding. Keys are sorted by encoding/json;
// a nil map encodes as "{}".
func (dx ToothDx) JSON() string {
	if dx == nil {
		return "{}"
	}
	b, err := json.Marshal(map[string][]string(dx))
	if err != nil {
		return "{}"
	}
	return string(b)
}

// StoredJSON returns nil for an empty map so that the column stays NULL.
func (dx ToothDx) StoredJSON() *string {
	if len(dx) == 0 {
		return nil
	}
	s := dx.JSON()
	return &s
}

func (dx ToothDx) Equal(other ToothDx) bool {
	return dx.JSON() == other.JSON()
}

func (dx ToothDx) Clone() ToothDx {
	out := make(ToothDx, len(dx))
	for tooth, labels := range dx {
		out[tooth] = append([]string(nil), labels...)
	}
	return out
}

// Teeth returns tooth identifiers in numeric order. Identifiers that are not
// numbers sort after the numeric ones, lexically.
func (dx ToothDx) Teeth() []string {
	teeth := make([]string, 0, len(dx))
	for t := range dx {
		teeth = append(teeth, t)
	}
	sort.Slice(teeth, func(i, j int) bool {
		a, errA := strconv.Atoi(teeth[i])
		b, errB := strconv.Atoi(teeth[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return teeth[i] < teeth[j]
	})
	return teeth
}

// DiagnosisText renders one "Diente <n>: a, b" line per tooth with labels.
func (dx ToothDx) DiagnosisText() string {
	var lines []string
	for _, t := range dx.Teeth() {
		if len(dx[t]) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("Diente %s: %s", t, strings.Join(dx[t], ", ")))
	}
	return strings.Join(lines, "\n")
}

// FullDiagnosis joins the derived text and the trimmed manual text with a
// blank line.
func FullDiagnosis(auto, manual string) string {
	var parts []string
	if auto != "" {
		parts = append(parts, auto)
	}
	if m := strings.TrimSpace(manual); m != "" {
		parts = append(parts, m)
	}
	return strings.Join(parts, "\n\n")
}
