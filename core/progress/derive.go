package progress

// deriveStatus computes the status of a milestone from its tasks.
// It returns "" for milestones without tasks, whose status is set by hand.
func deriveStatus(tasks []Task) string {
	if len(tasks) == 0 {
		return ""
	}
	var completed, started int
	for _, t := range tasks {
		switch t.Status {
		case StatusCompleted:
			completed++
		case StatusInProgress:
			started++
		}
	}
	switch {
	case completed == len(tasks):
		return StatusCompleted
	case completed+started > 0:
		return StatusInProgress
	default:
		return StatusPending
	}
}

// milestonePercent is the share of completed tasks, or all-or-nothing without tasks.
func milestonePercent(m Milestone, tasks []Task) int {
	if len(tasks) == 0 {
		if m.Status == StatusCompleted {
			return 100
		}
		return 0
	}
	var completed int
	for _, t := range tasks {
		if t.Status == StatusCompleted {
			completed++
		}
	}
	return completed * 100 / len(tasks)
}

// bookingPercent is the weight-averaged percent of milestones, rounded down.
func bookingPercent(milestones []Milestone) int {
	var total, weights int
	for _, m := range milestones {
		w := m.Weight
		if w < 1 {
			w = 1
		}
		total += m.Progress * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return total / weights
}

// hasStarted reports whether any work left the pending state.
func hasStarted(milestones []Milestone) bool {
	for _, m := range milestones {
		if m.Status != StatusPending {
			return true
		}
		for _, t := range m.Tasks {
			if t.Status != StatusPending {
				return true
			}
		}
	}
	return false
}
