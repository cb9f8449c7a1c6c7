package command

// Stage is a named step in the fixed execution pipeline.
type Stage string

const (
	StageBegin            Stage = "begin"
	StageCheckedRemote    Stage = "checked_remote"
	StageForked           Stage = "forked"
	StageClonedOrPulled   Stage = "cloned_or_pulled"
	StageCheckedOut       Stage = "checked_out"
	StageToolExecuted     Stage = "tool_executed"
	StageChangesAdded     Stage = "changes_added"
	StageChangesCommitted Stage = "changes_committed"
	StageChangesPushed    Stage = "changes_pushed"
	StageCommitIDResolved Stage = "commit_id_resolved"
	StageEnd              Stage = "end"
)

// StageDescriptor carries per-stage metadata for the pipeline.
type StageDescriptor struct {
	Stage Stage  `json:"stage"`
	Label string `json:"label"`
	// RequiresChanges marks stages that only run when the tool produced
	// a working-tree diff. They are treated as satisfied otherwise.
	RequiresChanges bool `json:"requires_changes"`
}

// Pipeline is the ordered stage list every command passes through.
// Order is fixed; a stage position never changes between releases because
// persisted commands resume by stage name.
var Pipeline = []StageDescriptor{
	{Stage: StageBegin, Label: "Begin"},
	{Stage: StageCheckedRemote, Label: "Check the remote repository"},
	{Stage: StageForked, Label: "Fork it"},
	{Stage: StageClonedOrPulled, Label: "git clone/pull"},
	{Stage: StageCheckedOut, Label: "git checkout -b"},
	{Stage: StageToolExecuted, Label: "Execute the tool"},
	{Stage: StageChangesAdded, Label: "git add ."},
	{Stage: StageChangesCommitted, Label: "git commit"},
	{Stage: StageChangesPushed, Label: "git push", RequiresChanges: true},
	{Stage: StageCommitIDResolved, Label: "Resolve commit id", RequiresChanges: true},
	{Stage: StageEnd, Label: "End"},
}

// Index returns the pipeline position of s, or -1 for an unknown stage.
func Index(s Stage) int {
	for i, d := range Pipeline {
		if d.Stage == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s names a pipeline stage.
func Valid(s Stage) bool { return Index(s) >= 0 }

// Next returns the next applicable stage after current, skipping
// change-gated stages when hasChanges is false. It returns ok=false when
// current is StageEnd (the pipeline is complete) or unknown.
func Next(current Stage, hasChanges bool) (Stage, bool) {
	i := Index(current)
	if i < 0 || i == len(Pipeline)-1 {
		return "", false
	}
	for _, d := range Pipeline[i+1:] {
		if d.RequiresChanges && !hasChanges {
			continue
		}
		return d.Stage, true
	}
	return "", false
}

// Later reports whether a is strictly later in the pipeline than b.
func Later(a, b Stage) bool {
	return Index(a) > Index(b)
}
