package resource

// TaskOrderingDependency imposes a happens-before edge on another task
// without affecting up-to-date status. It has no state.
type TaskOrderingDependency struct {
	TaskName string
}

func NewTaskOrderingDependency(taskName string) *TaskOrderingDependency {
	return &TaskOrderingDependency{TaskName: taskName}
}

func (d *TaskOrderingDependency) Key() string { return TaskOrderingKey(d.TaskName) }

func (d *TaskOrderingDependency) Exists() bool { return true }

func (d *TaskOrderingDependency) IsModified(*State) bool { return false }

func (d *TaskOrderingDependency) CurrentState(*State) (*State, bool) { return nil, false }

func (d *TaskOrderingDependency) Check(*State, bool) CheckResult {
	return CheckResult{Status: StatusUpToDate, Reason: "task-ordering only"}
}
