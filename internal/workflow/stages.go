package workflow

// Stage is one step of the progress indicator.
type Stage struct {
	ID    State
	Label string
}

var stages = []Stage{
	{ID: StateReset, Label: "Start"},
	{ID: StateConfigured, Label: "Configure"},
	{ID: StatePlanning, Label: "Plan"},
	{ID: StateExecuting, Label: "Execute"},
	{ID: StateComplete, Label: "Complete"},
}

// Stages returns the progress stages in display order.
func Stages() []Stage {
	out := make([]Stage, len(stages))
	copy(out, stages)
	return out
}

// StageComplete reports whether stage is behind current in the progression.
// Nothing is complete in error; in questions everything before execution is.
func StageComplete(current, stage State) bool {
	if current == StateError {
		return false
	}
	stageIndex := stage.Traits().order
	if stageIndex < 0 {
		return false
	}
	if current == StateQuestions {
		return stageIndex < StateExecuting.Traits().order
	}
	return stageIndex < current.Traits().order
}

// StageActive reports whether stage is the one highlighted for current.
func StageActive(current, stage State) bool {
	active := current.Traits().Stage
	return active != "" && active == stage
}
