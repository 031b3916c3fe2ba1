package waterfall

// DetailState tracks which sections of an expanded detail row are open.
// Toggles return a new value; a DetailState held by a DetailStates map
// is never mutated in place.
type DetailState struct {
	TagsOpen     bool
	ProcessOpen  bool
	LogsOpen     bool
	openLogItems map[int]bool
}

// NewDetailState returns a detail state with every section closed.
func NewDetailState() *DetailState {
	return &DetailState{}
}

func (d *DetailState) clone() *DetailState {
	out := &DetailState{}
	if d == nil {
		return out
	}
	out.TagsOpen = d.TagsOpen
	out.ProcessOpen = d.ProcessOpen
	out.LogsOpen = d.LogsOpen
	if len(d.openLogItems) > 0 {
		out.openLogItems = make(map[int]bool, len(d.openLogItems))
		for k, v := range d.openLogItems {
			out.openLogItems[k] = v
		}
	}
	return out
}

// ToggleTags flips the tags section.
func (d *DetailState) ToggleTags() *DetailState {
	out := d.clone()
	out.TagsOpen = !out.TagsOpen
	return out
}

// ToggleProcess flips the process section.
func (d *DetailState) ToggleProcess() *DetailState {
	out := d.clone()
	out.ProcessOpen = !out.ProcessOpen
	return out
}

// ToggleLogs flips the logs section.
func (d *DetailState) ToggleLogs() *DetailState {
	out := d.clone()
	out.LogsOpen = !out.LogsOpen
	return out
}

// ToggleLogItem flips a single log entry, identified by its position
// in the span's log list.
func (d *DetailState) ToggleLogItem(logIndex int) *DetailState {
	out := d.clone()
	if out.openLogItems[logIndex] {
		delete(out.openLogItems, logIndex)
		return out
	}
	if out.openLogItems == nil {
		out.openLogItems = make(map[int]bool)
	}
	out.openLogItems[logIndex] = true
	return out
}

// IsLogItemOpen reports whether the log entry at logIndex is expanded.
func (d *DetailState) IsLogItemOpen(logIndex int) bool {
	if d == nil {
		return false
	}
	return d.openLogItems[logIndex]
}
