package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tasksWith(statuses ...string) []Task {
	tasks := make([]Task, 0, len(statuses))
	for _, s := range statuses {
		tasks = append(tasks, Task{Workflow: Workflow{Status: s}})
	}
	return tasks
}

func Test_deriveStatus(t *testing.T) {
	tests := []struct {
		name  string
		tasks []Task
		want  string
	}{
		{name: "no tasks", want: ""},
		{name: "all pending", tasks: tasksWith(StatusPending, StatusPending), want: StatusPending},
		{name: "one started", tasks: tasksWith(StatusPending, StatusInProgress), want: StatusInProgress},
		{name: "one completed", tasks: tasksWith(StatusCompleted, StatusPending), want: StatusInProgress},
		{name: "all completed", tasks: tasksWith(StatusCompleted, StatusCompleted), want: StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveStatus(tt.tasks))
		})
	}
}

func Test_milestonePercent(t *testing.T) {
	pending := Milestone{Workflow: Workflow{Status: StatusPending}}
	done := Milestone{Workflow: Workflow{Status: StatusCompleted}}

	assert.Equal(t, 0, milestonePercent(pending, nil))
	assert.Equal(t, 100, milestonePercent(done, nil))
	assert.Equal(t, 33, milestonePercent(pending, tasksWith(StatusCompleted, StatusInProgress, StatusPending)))
	assert.Equal(t, 66, milestonePercent(pending, tasksWith(StatusCompleted, StatusCompleted, StatusPending)))
	assert.Equal(t, 100, milestonePercent(pending, tasksWith(StatusCompleted)))
}

func Test_bookingPercent(t *testing.T) {
	tests := []struct {
		name       string
		milestones []Milestone
		want       int
	}{
		{name: "no milestones", want: 0},
		{name: "equal weights", milestones: []Milestone{{Weight: 1, Progress: 100}, {Weight: 1, Progress: 0}}, want: 50},
		{name: "weighted", milestones: []Milestone{{Weight: 3, Progress: 100}, {Weight: 1, Progress: 0}}, want: 75},
		{name: "rounded down", milestones: []Milestone{{Weight: 1, Progress: 100}, {Weight: 1, Progress: 0}, {Weight: 1, Progress: 0}}, want: 33},
		{name: "zero weight counts as one", milestones: []Milestone{{Weight: 0, Progress: 100}, {Weight: 1, Progress: 50}}, want: 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bookingPercent(tt.milestones))
		})
	}
}

func Test_hasStarted(t *testing.T) {
	assert.False(t, hasStarted(nil))
	assert.False(t, hasStarted([]Milestone{{Workflow: Workflow{Status: StatusPending}, Tasks: tasksWith(StatusPending)}}))
	assert.True(t, hasStarted([]Milestone{{Workflow: Workflow{Status: StatusPending}, Tasks: tasksWith(StatusInProgress)}}))
	assert.True(t, hasStarted([]Milestone{{Workflow: Workflow{Status: StatusCompleted}}}))
}

func TestWorkflow_SetStatus(t *testing.T) {
	now := time.Now().UTC()
	reviewed := now.Add(-time.Hour)

	w := Workflow{Status: StatusCompleted, ApprovalStatus: ApprovalApproved, ReviewedBy: "x", ReviewedAt: &reviewed, CompletedAt: &reviewed}
	assert.False(t, w.SetStatus(StatusCompleted, now), "same status is a no-op")

	require.True(t, w.SetStatus(StatusInProgress, now))
	assert.Equal(t, StatusInProgress, w.Status)
	assert.Nil(t, w.CompletedAt)
	assert.Equal(t, ApprovalPending, w.ApprovalStatus)
	assert.Empty(t, w.ReviewedBy)
	assert.Nil(t, w.ReviewedAt)

	require.True(t, w.SetStatus(StatusCompleted, now))
	if assert.NotNil(t, w.CompletedAt) {
		assert.Equal(t, now, *w.CompletedAt)
	}
	assert.Equal(t, ApprovalPending, w.ApprovalStatus)
}

func TestWorkflow_Review(t *testing.T) {
	now := time.Now().UTC()

	w := newWorkflow(nil)
	assert.Error(t, w.Review("client", Review{Decision: ApprovalApproved}, now), "pending work cannot be reviewed")

	w.SetStatus(StatusCompleted, now)
	require.NoError(t, w.Review("client", Review{Decision: ApprovalApproved}, now))
	assert.True(t, w.IsDone())
	assert.Equal(t, "client", w.ReviewedBy)

	w.SetStatus(StatusInProgress, now)
	w.SetStatus(StatusCompleted, now)
	require.NoError(t, w.Review("client", Review{Decision: ApprovalRejected, Note: "redo"}, now))
	assert.Equal(t, StatusInProgress, w.Status)
	assert.Equal(t, ApprovalRejected, w.ApprovalStatus)
	assert.Equal(t, "redo", w.ApprovalNote)
	assert.Nil(t, w.CompletedAt)
	assert.False(t, w.IsDone())
}

func TestWorkflow_IsOverdue(t *testing.T) {
	now := time.Now().UTC()
	past, future := now.Add(-time.Hour), now.Add(time.Hour)

	assert.False(t, Workflow{Status: StatusPending}.IsOverdue(now))
	assert.True(t, Workflow{Status: StatusPending, DueDate: &past}.IsOverdue(now))
	assert.False(t, Workflow{Status: StatusPending, DueDate: &future}.IsOverdue(now))
	assert.False(t, Workflow{Status: StatusCompleted, DueDate: &past}.IsOverdue(now))
}
