package events

// ProgressReporter publishes the progress.* event family for one named
// task: an overall stage/counter plus optional per-item tracking.
type ProgressReporter struct {
	bus      *Bus
	taskID   string
	taskName string
}

// NewProgressReporter starts a task and publishes progress.start.
func NewProgressReporter(bus *Bus, taskID, taskName string) *ProgressReporter {
	r := &ProgressReporter{bus: bus, taskID: taskID, taskName: taskName}
	r.publish(TypeProgressStart, nil)
	return r
}

func (r *ProgressReporter) publish(eventType string, extra map[string]any) {
	if r.bus == nil {
		return
	}
	payload := map[string]any{
		"task_id":   r.taskID,
		"task_name": r.taskName,
	}
	for k, v := range extra {
		payload[k] = v
	}
	r.bus.Publish(eventType, payload)
}

// Total sets the overall unit count.
func (r *ProgressReporter) Total(total int) {
	r.publish(TypeProgressTotal, map[string]any{"total": total})
}

// Stage announces the current stage.
func (r *ProgressReporter) Stage(key, label string, index, count int) {
	r.publish(TypeProgressStage, map[string]any{
		"stage_key":   key,
		"stage_label": label,
		"stage_index": index,
		"stage_count": count,
	})
}

// Advance reports completed units.
func (r *ProgressReporter) Advance(completed int) {
	r.publish(TypeProgressAdvance, map[string]any{"completed": completed})
}

// Items announces the per-item keys being processed.
func (r *ProgressReporter) Items(items []string) {
	r.publish(TypeProgressItems, map[string]any{"items": items})
}

// ItemStage reports one item entering a stage.
func (r *ProgressReporter) ItemStage(index int, key, label string) {
	r.publish(TypeProgressItemStage, map[string]any{
		"item_index": index,
		"item_key":   key,
		"item_label": label,
	})
}

// ItemFinish reports one item's outcome.
func (r *ProgressReporter) ItemFinish(index int, key string, success bool, message string) {
	r.publish(TypeProgressItemFinish, map[string]any{
		"item_index": index,
		"item_key":   key,
		"success":    success,
		"message":    message,
	})
}

// Finish ends the task.
func (r *ProgressReporter) Finish(success bool, message string) {
	r.publish(TypeProgressFinish, map[string]any{
		"success": success,
		"message": message,
	})
}
