package progress_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbuAli85/business-services-hub-sub009/core"
	"github.com/AbuAli85/business-services-hub-sub009/core/booking"
	"github.com/AbuAli85/business-services-hub-sub009/core/profile"
	"github.com/AbuAli85/business-services-hub-sub009/core/progress"
	"github.com/AbuAli85/business-services-hub-sub009/tests"
)

type fixture struct {
	env      *testutil.Env
	admin    profile.Profile
	provider profile.Profile
	client   profile.Profile
	stranger profile.Profile
	booking  booking.Booking
}

func setup(t *testing.T, status string) fixture {
	env := testutil.NewEnv()
	f := fixture{
		env:      env,
		admin:    testutil.CreateProfile(t, env.Profiles, profile.RoleAdmin, "Admin", "admin@test.om"),
		provider: testutil.CreateProfile(t, env.Profiles, profile.RoleProvider, "Provider", "provider@test.om"),
		client:   testutil.CreateProfile(t, env.Profiles, profile.RoleClient, "Client", "client@test.om"),
		stranger: testutil.CreateProfile(t, env.Profiles, profile.RoleClient, "Stranger", "stranger@test.om"),
	}
	o := testutil.CreateOffering(t, env.Offerings, f.provider, "Website", 100000)
	f.booking = testutil.CreateBooking(t, env.Bookings, o, f.client, status)
	return f
}

func (f fixture) getBooking(t *testing.T) booking.Booking {
	b, err := f.env.Bookings.GetBooking(context.Background(), f.booking.ID)
	require.NoError(t, err)
	return b
}

func (f fixture) milestone(t *testing.T, title string, weight int) progress.Milestone {
	m, err := f.env.ProgressSvc.CreateMilestone(context.Background(), f.provider, f.booking.ID, progress.NewMilestone{Title: title, Weight: weight})
	require.NoError(t, err)
	return m
}

func (f fixture) task(t *testing.T, milestoneID, title string) progress.Task {
	task, err := f.env.ProgressSvc.CreateTask(context.Background(), f.provider, milestoneID, progress.NewTask{Title: title})
	require.NoError(t, err)
	return task
}

func TestService_CreateMilestone(t *testing.T) {
	ctx := context.Background()

	t.Run("permissions", func(t *testing.T) {
		f := setup(t, booking.StatusApproved)
		nm := progress.NewMilestone{Title: "Design"}

		_, err := f.env.ProgressSvc.CreateMilestone(ctx, f.client, f.booking.ID, nm)
		assert.Equal(t, core.ErrForbidden, err)

		_, err = f.env.ProgressSvc.CreateMilestone(ctx, f.stranger, f.booking.ID, nm)
		assert.True(t, core.IsNotFound(err))

		m, err := f.env.ProgressSvc.CreateMilestone(ctx, f.admin, f.booking.ID, nm)
		require.NoError(t, err)
		assert.Equal(t, 1, m.Weight)
		assert.Equal(t, progress.StatusPending, m.Status)
		assert.Equal(t, progress.ApprovalPending, m.ApprovalStatus)
		assert.Empty(t, m.Tasks)
	})

	t.Run("positions", func(t *testing.T) {
		f := setup(t, booking.StatusApproved)
		assert.Equal(t, 0, f.milestone(t, "One", 0).Position)
		assert.Equal(t, 1, f.milestone(t, "Two", 0).Position)
	})

	t.Run("closed booking", func(t *testing.T) {
		for _, status := range []string{booking.StatusPending, booking.StatusCompleted, booking.StatusCancelled} {
			f := setup(t, status)
			_, err := f.env.ProgressSvc.CreateMilestone(ctx, f.provider, f.booking.ID, progress.NewMilestone{Title: "Design"})
			assert.True(t, core.IsValidation(err), status)
		}
	})
}

func TestService_taskDerivation(t *testing.T) {
	ctx := context.Background()
	f := setup(t, booking.StatusApproved)
	svc := f.env.ProgressSvc

	m := f.milestone(t, "Build", 1)
	t1 := f.task(t, m.ID, "Backend")
	t2 := f.task(t, m.ID, "Frontend")
	assert.Equal(t, booking.StatusApproved, f.getBooking(t).Status, "creating tasks does not start the booking")

	// first task started: milestone follows, booking auto-starts
	f.env.Mail.Reset()
	_, err := svc.SetTaskStatus(ctx, f.provider, t1.ID, progress.StatusChange{Status: progress.StatusInProgress})
	require.NoError(t, err)

	milestones, err := svc.List(ctx, f.client, f.booking.ID)
	require.NoError(t, err)
	require.Len(t, milestones, 1)
	assert.Equal(t, progress.StatusInProgress, milestones[0].Status)
	assert.Equal(t, 0, milestones[0].Progress)

	b := f.getBooking(t)
	assert.Equal(t, booking.StatusInProgress, b.Status)
	assert.NotNil(t, b.StartedAt)

	// the client hears about the start like any other transition
	sent := f.env.Mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "client@test.om", sent[0].To[0].Address)
	assert.True(t, strings.HasSuffix(sent[0].Subject, "Booking in progress: Website"), sent[0].Subject)

	// half done
	_, err = svc.SetTaskStatus(ctx, f.provider, t1.ID, progress.StatusChange{Status: progress.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, 50, f.getBooking(t).Progress)
	assert.Len(t, f.env.Mail.Sent(), 1, "only the start is announced")

	// all done
	task, err := svc.SetTaskStatus(ctx, f.provider, t2.ID, progress.StatusChange{Status: progress.StatusCompleted})
	require.NoError(t, err)
	assert.NotNil(t, task.CompletedAt)

	milestones, err = svc.List(ctx, f.provider, f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, progress.StatusCompleted, milestones[0].Status)
	assert.NotNil(t, milestones[0].CompletedAt)
	assert.Equal(t, 100, milestones[0].Progress)
	assert.Equal(t, 100, f.getBooking(t).Progress)

	// direct status changes are refused on milestones with tasks
	_, err = svc.SetMilestoneStatus(ctx, f.provider, m.ID, progress.StatusChange{Status: progress.StatusPending})
	assert.True(t, core.IsValidation(err))

	// reopening a task reopens the milestone
	_, err = svc.SetTaskStatus(ctx, f.provider, t2.ID, progress.StatusChange{Status: progress.StatusInProgress})
	require.NoError(t, err)
	milestones, err = svc.List(ctx, f.provider, f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, progress.StatusInProgress, milestones[0].Status)
	assert.Nil(t, milestones[0].CompletedAt)
	assert.Equal(t, 50, f.getBooking(t).Progress)

	// deleting the unfinished task completes the milestone again
	require.NoError(t, svc.DeleteTask(ctx, f.provider, t2.ID))
	milestones, err = svc.List(ctx, f.provider, f.booking.ID)
	require.NoError(t, err)
	assert.Len(t, milestones[0].Tasks, 1)
	assert.Equal(t, progress.StatusCompleted, milestones[0].Status)
	assert.Equal(t, 100, f.getBooking(t).Progress)
}

func TestService_weightedProgress(t *testing.T) {
	ctx := context.Background()
	f := setup(t, booking.StatusInProgress)
	svc := f.env.ProgressSvc

	heavy := f.milestone(t, "Heavy", 3)
	f.milestone(t, "Light", 1)

	_, err := svc.SetMilestoneStatus(ctx, f.provider, heavy.ID, progress.StatusChange{Status: progress.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, 75, f.getBooking(t).Progress)

	sum, err := svc.Summary(ctx, f.client, f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, progress.Summary{
		BookingID:           f.booking.ID,
		Progress:            75,
		Milestones:          2,
		MilestonesCompleted: 1,
	}, sum)

	// deleting the unfinished milestone
	milestones, err := svc.List(ctx, f.provider, f.booking.ID)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteMilestone(ctx, f.provider, milestones[1].ID))
	assert.Equal(t, 100, f.getBooking(t).Progress)
}

func TestService_review(t *testing.T) {
	ctx := context.Background()
	f := setup(t, booking.StatusInProgress)
	svc := f.env.ProgressSvc

	m := f.milestone(t, "Launch", 1)
	approve := progress.Review{Decision: progress.ApprovalApproved}
	reject := progress.Review{Decision: progress.ApprovalRejected, Note: "missing pages"}

	_, err := svc.ReviewMilestone(ctx, f.client, m.ID, approve)
	assert.True(t, core.IsValidation(err), "unfinished work cannot be reviewed")

	_, err = svc.SetMilestoneStatus(ctx, f.provider, m.ID, progress.StatusChange{Status: progress.StatusCompleted})
	require.NoError(t, err)

	_, err = svc.ReviewMilestone(ctx, f.provider, m.ID, approve)
	assert.Equal(t, core.ErrForbidden, err, "providers do not review their own work")

	m, err = svc.ReviewMilestone(ctx, f.client, m.ID, reject)
	require.NoError(t, err)
	assert.Equal(t, progress.StatusInProgress, m.Status)
	assert.Equal(t, progress.ApprovalRejected, m.ApprovalStatus)
	assert.Equal(t, "missing pages", m.ApprovalNote)
	assert.Equal(t, f.client.ID, m.ReviewedBy)

	// the rejection sticks until the work is completed again
	milestones, err := svc.List(ctx, f.client, f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, progress.StatusInProgress, milestones[0].Status)
	assert.Equal(t, progress.ApprovalRejected, milestones[0].ApprovalStatus)

	m, err = svc.SetMilestoneStatus(ctx, f.provider, m.ID, progress.StatusChange{Status: progress.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, progress.ApprovalPending, m.ApprovalStatus)
	assert.Empty(t, m.ApprovalNote)

	m, err = svc.ReviewMilestone(ctx, f.client, m.ID, approve)
	require.NoError(t, err)
	assert.True(t, m.IsDone())
	assert.NotNil(t, m.ReviewedAt)
}

func TestService_rejectMilestoneWithTasks(t *testing.T) {
	ctx := context.Background()
	f := setup(t, booking.StatusInProgress)
	svc := f.env.ProgressSvc

	m := f.milestone(t, "Build", 1)
	t1 := f.task(t, m.ID, "Backend")
	t2 := f.task(t, m.ID, "Frontend")
	for _, id := range []string{t1.ID, t2.ID} {
		_, err := svc.SetTaskStatus(ctx, f.provider, id, progress.StatusChange{Status: progress.StatusCompleted})
		require.NoError(t, err)
	}
	_, err := svc.ReviewTask(ctx, f.client, t1.ID, progress.Review{Decision: progress.ApprovalApproved})
	require.NoError(t, err)

	m, err = svc.ReviewMilestone(ctx, f.client, m.ID, progress.Review{Decision: progress.ApprovalRejected, Note: "wrong colors"})
	require.NoError(t, err)
	assert.Equal(t, progress.StatusInProgress, m.Status)
	assert.Equal(t, progress.ApprovalRejected, m.ApprovalStatus)
	assert.Equal(t, 0, m.Progress)

	// its tasks are reopened so the milestone still follows them
	require.Len(t, m.Tasks, 2)
	for _, task := range m.Tasks {
		assert.Equal(t, progress.StatusInProgress, task.Status, task.Title)
		assert.Equal(t, progress.ApprovalPending, task.ApprovalStatus, task.Title)
		assert.Nil(t, task.CompletedAt, task.Title)
	}
	assert.Equal(t, 0, f.getBooking(t).Progress)

	// a write that does not change what the tasks give keeps the rejection
	_, err = svc.SetTaskStatus(ctx, f.provider, t1.ID, progress.StatusChange{Status: progress.StatusInProgress})
	require.NoError(t, err)
	title := "Backend API"
	_, err = svc.UpdateTask(ctx, f.provider, t2.ID, progress.UpdateTask{Title: &title})
	require.NoError(t, err)

	milestones, err := svc.List(ctx, f.client, f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, progress.StatusInProgress, milestones[0].Status)
	assert.Equal(t, progress.ApprovalRejected, milestones[0].ApprovalStatus)
	assert.Equal(t, "wrong colors", milestones[0].ApprovalNote)

	// redoing the work puts it back up for review
	for _, id := range []string{t1.ID, t2.ID} {
		_, err = svc.SetTaskStatus(ctx, f.provider, id, progress.StatusChange{Status: progress.StatusCompleted})
		require.NoError(t, err)
	}
	milestones, err = svc.List(ctx, f.client, f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, progress.StatusCompleted, milestones[0].Status)
	assert.Equal(t, progress.ApprovalPending, milestones[0].ApprovalStatus)
	assert.Empty(t, milestones[0].ApprovalNote)
	assert.Equal(t, 100, f.getBooking(t).Progress)

	m, err = svc.ReviewMilestone(ctx, f.client, m.ID, progress.Review{Decision: progress.ApprovalApproved})
	require.NoError(t, err)
	assert.True(t, m.IsDone())
}

func TestService_taskReview(t *testing.T) {
	ctx := context.Background()
	f := setup(t, booking.StatusInProgress)
	svc := f.env.ProgressSvc

	m := f.milestone(t, "Build", 1)
	task := f.task(t, m.ID, "Backend")

	_, err := svc.SetTaskStatus(ctx, f.provider, task.ID, progress.StatusChange{Status: progress.StatusCompleted})
	require.NoError(t, err)

	task, err = svc.ReviewTask(ctx, f.client, task.ID, progress.Review{Decision: progress.ApprovalRejected, Note: "bugs"})
	require.NoError(t, err)
	assert.Equal(t, progress.StatusInProgress, task.Status)

	// the rejected task reopens its milestone
	milestones, err := svc.List(ctx, f.client, f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, progress.StatusInProgress, milestones[0].Status)
	assert.Equal(t, 0, f.getBooking(t).Progress)
}

func TestService_hiddenRows(t *testing.T) {
	ctx := context.Background()
	f := setup(t, booking.StatusInProgress)
	svc := f.env.ProgressSvc

	m := f.milestone(t, "Build", 1)
	task := f.task(t, m.ID, "Backend")

	_, err := svc.List(ctx, f.stranger, f.booking.ID)
	assert.Equal(t, booking.ErrNotFound, err)

	_, err = svc.UpdateMilestone(ctx, f.stranger, m.ID, progress.UpdateMilestone{})
	assert.Equal(t, progress.ErrMilestoneNotFound, err)

	_, err = svc.UpdateTask(ctx, f.stranger, task.ID, progress.UpdateTask{})
	assert.Equal(t, progress.ErrTaskNotFound, err)

	assert.Equal(t, progress.ErrTaskNotFound, svc.DeleteTask(ctx, f.provider, "2b0e4a4c-5df6-4c0e-9b59-6d3f2f7b3d01"))
}

func TestService_UpdateMilestone(t *testing.T) {
	ctx := context.Background()
	f := setup(t, booking.StatusInProgress)
	svc := f.env.ProgressSvc

	due := time.Now().Add(-time.Hour)
	m, err := svc.CreateMilestone(ctx, f.provider, f.booking.ID, progress.NewMilestone{Title: "Late", DueDate: &due})
	require.NoError(t, err)

	milestones, err := svc.List(ctx, f.client, f.booking.ID)
	require.NoError(t, err)
	assert.True(t, milestones[0].Overdue)

	title := "On time"
	m, err = svc.UpdateMilestone(ctx, f.provider, m.ID, progress.UpdateMilestone{Title: &title, ClearDueDate: true})
	require.NoError(t, err)
	assert.Equal(t, "On time", m.Title)
	assert.Nil(t, m.DueDate)
	assert.False(t, m.Overdue)
}

func TestService_UnfinishedMilestones(t *testing.T) {
	ctx := context.Background()
	f := setup(t, booking.StatusInProgress)
	svc := f.env.ProgressSvc

	m := f.milestone(t, "Launch", 1)
	left, err := svc.UnfinishedMilestones(ctx, f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, left)

	_, err = svc.SetMilestoneStatus(ctx, f.provider, m.ID, progress.StatusChange{Status: progress.StatusCompleted})
	require.NoError(t, err)

	// completion needs the client's approval
	_, err = f.env.BookingSvc.Transition(ctx, f.provider, f.booking.ID, booking.StatusChange{Status: booking.StatusCompleted})
	assert.True(t, core.IsValidation(err))

	_, err = svc.ReviewMilestone(ctx, f.client, m.ID, progress.Review{Decision: progress.ApprovalApproved})
	require.NoError(t, err)

	left, err = svc.UnfinishedMilestones(ctx, f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, left)

	b, err := f.env.BookingSvc.Transition(ctx, f.provider, f.booking.ID, booking.StatusChange{Status: booking.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCompleted, b.Status)

	// completed bookings are frozen
	_, err = svc.SetMilestoneStatus(ctx, f.provider, m.ID, progress.StatusChange{Status: progress.StatusInProgress})
	assert.True(t, core.IsValidation(err))
}
