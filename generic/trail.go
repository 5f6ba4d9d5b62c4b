package generic

import "fmt"

// =============================================================================
// TRAIL - Ordered audit record of calculation steps
// =============================================================================

// Step is one intermediate value in a calculation, in the order it was derived.
type Step struct {
	Seq    int               `json:"seq"`
	Stage  string            `json:"stage"`
	Name   string            `json:"name"`
	Value  Amount            `json:"value"`
	Inputs map[string]string `json:"inputs,omitempty"`
	Note   string            `json:"note,omitempty"`
}

// NewStep builds an unsequenced step. kv is a flat list of input name/value pairs.
func NewStep(name string, value Amount, note string, kv ...any) Step {
	step := Step{Name: name, Value: value, Note: note}
	if len(kv) > 0 {
		step.Inputs = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			step.Inputs[fmt.Sprint(kv[i])] = fmt.Sprint(kv[i+1])
		}
	}
	return step
}

// Trail accumulates steps; sequence numbers are assigned on Add.
type Trail struct {
	Steps []Step
}

// Add appends steps under the given stage.
func (t *Trail) Add(stage string, steps ...Step) {
	for _, s := range steps {
		s.Seq = len(t.Steps) + 1
		s.Stage = stage
		t.Steps = append(t.Steps, s)
	}
}

// Find returns the last step with the given name.
func (t *Trail) Find(name string) (Step, bool) {
	for i := len(t.Steps) - 1; i >= 0; i-- {
		if t.Steps[i].Name == name {
			return t.Steps[i], true
		}
	}
	return Step{}, false
}
