// Package status turns the loosely-structured documents a Bambu printer
// publishes on its report topic into a canonical record with every field
// present. Missing or wrong-typed fields fall back to the last known
// values, so Normalize never fails.
package status

// Document keys inside the "print" section.
const (
	SectionKey     = "print"
	KeyState       = "gcode_state"
	KeyError       = "err"
	KeySubtaskName = "subtask_name"
	KeyGcodeFile   = "gcode_file"
	KeyFile        = "file"
)

// UnknownTask labels a job when the document names no file.
const UnknownTask = "<unknown>"

// Raw is a decoded status document. Nothing about its shape is trusted.
type Raw map[string]any

// Canonical is the normalized view of one status document.
type Canonical struct {
	State     string `json:"state"`
	ErrorCode string `json:"error_code"`
	TaskLabel string `json:"task_label"`
}

// Previous carries the values used when a document omits a field.
type Previous struct {
	State     string
	ErrorCode string
}

// Normalize derives a Canonical record from raw, taking state and error
// code from prev when the document does not carry them. A "print" section
// that is missing or not an object is treated as empty.
func Normalize(raw Raw, prev Previous) Canonical {
	section, _ := raw[SectionKey].(map[string]any)

	c := Canonical{
		State:     prev.State,
		ErrorCode: prev.ErrorCode,
		TaskLabel: UnknownTask,
	}

	if code, ok := stringField(section, KeyError); ok {
		c.ErrorCode = CanonicalErrorCode(code)
	}
	if state, ok := stringField(section, KeyState); ok {
		c.State = state
	}
	c.TaskLabel = taskLabel(section)

	return c
}

// taskLabel picks the best human name for the running job: an explicit
// subtask name, then the gcode file, then the generic file field.
func taskLabel(section map[string]any) string {
	for _, key := range []string{KeySubtaskName, KeyGcodeFile, KeyFile} {
		if v, ok := stringField(section, key); ok && v != "" {
			return v
		}
	}
	return UnknownTask
}

// stringField returns section[key] when it is present and a string.
// Any other shape counts as absent.
func stringField(section map[string]any, key string) (string, bool) {
	if section == nil {
		return "", false
	}
	v, ok := section[key].(string)
	return v, ok
}

// CanonicalErrorCode rewrites a compact device error string into the
// XXXX-YYYY form using its last eight characters. Strings shorter than
// eight characters, and strings already in canonical shape, are returned
// unchanged, which makes the transform idempotent.
func CanonicalErrorCode(code string) string {
	if IsCanonicalShape(code) || len(code) < 8 {
		return code
	}
	tail := code[len(code)-8:]
	return tail[:4] + "-" + tail[4:]
}

// IsCanonicalShape reports whether code is nine characters with a hyphen
// in the middle.
func IsCanonicalShape(code string) bool {
	return len(code) == 9 && code[4] == '-'
}
