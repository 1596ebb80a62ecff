package runtime

import "fmt"

// Step names one stage of a matrix leg, in execution order.
type Step string

const (
	StepBuildBase    Step = "build-base"
	StepBuildExample Step = "build-example"
	StepSmoke        Step = "smoke"
	StepDeploy       Step = "deploy"
)

// Steps is the fixed leg sequence.
var Steps = []Step{StepBuildBase, StepBuildExample, StepSmoke, StepDeploy}

// Flow selects which steps of the sequence a command runs.
type Flow string

const (
	FlowFull   Flow = "full"
	FlowBuild  Flow = "build"
	FlowSmoke  Flow = "smoke"
	FlowDeploy Flow = "deploy"
)

// ParseFlow converts a command or flag value into a Flow.
func ParseFlow(s string) (Flow, error) {
	switch f := Flow(s); f {
	case FlowFull, FlowBuild, FlowSmoke, FlowDeploy:
		return f, nil
	case "":
		return FlowFull, nil
	}
	return "", fmt.Errorf("invalid flow: %q. Must be one of: full, build, smoke, deploy", s)
}

// Includes reports whether step runs under f.
func (f Flow) Includes(step Step) bool {
	switch f {
	case FlowFull:
		return true
	case FlowBuild:
		return step == StepBuildBase || step == StepBuildExample
	case FlowSmoke:
		return step == StepSmoke
	case FlowDeploy:
		return step == StepDeploy
	}
	return false
}
