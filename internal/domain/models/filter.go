package models

import "sort"

// Matches reports whether task passes every filter that is set.
func (f TaskFilter) Matches(task *Task) bool {
	if f.Status != nil && task.Status != *f.Status {
		return false
	}
	if f.Priority != nil && task.Priority != *f.Priority {
		return false
	}
	if f.DueDate != nil {
		if task.DueDate == nil || task.DueDate.Format(DateLayout) != f.DueDate.Format(DateLayout) {
			return false
		}
	}
	return true
}

// SortTasks orders tasks in place. OrderingPriority puts "now" before "then",
// then due date ascending with undated tasks last, then newest first.
func SortTasks(tasks []Task, ordering Ordering) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := &tasks[i], &tasks[j]
		if ordering == OrderingPriority {
			if a.Priority != b.Priority {
				return priorityRank(a.Priority) < priorityRank(b.Priority)
			}
			switch {
			case a.DueDate == nil && b.DueDate != nil:
				return false
			case a.DueDate != nil && b.DueDate == nil:
				return true
			case a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
				return a.DueDate.Before(*b.DueDate)
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func priorityRank(p Priority) int {
	if p == PriorityNow {
		return 0
	}
	return 1
}
