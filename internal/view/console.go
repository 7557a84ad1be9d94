package view

import (
	"slices"

	"encmirror/internal/model"
)

// ConsoleView is the console panel: worker slots in order plus the
// add-to-queue console.
type ConsoleView struct {
	Slots    []model.ConsoleState `json:"slots"`
	AddQueue *model.ConsoleState  `json:"addQueue,omitempty"`
}

// AddQueueSlot is the console slot reserved for add-to-queue output.
const AddQueueSlot = -1

// BuildConsoleView sorts worker slots ascending and separates the
// add-to-queue console.
func BuildConsoleView(consoles []model.ConsoleState) ConsoleView {
	out := ConsoleView{Slots: make([]model.ConsoleState, 0, len(consoles))}
	for _, c := range consoles {
		if c.Slot == AddQueueSlot {
			addQueue := c
			out.AddQueue = &addQueue
			continue
		}
		if c.Slot < 0 {
			continue
		}
		out.Slots = append(out.Slots, c)
	}
	slices.SortFunc(out.Slots, func(a, b model.ConsoleState) int { return a.Slot - b.Slot })
	return out
}
