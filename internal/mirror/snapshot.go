package mirror

import (
	"maps"
	"slices"

	"encmirror/internal/event"
	"encmirror/internal/model"
)

// Snapshot is a deep copy of the whole mirror. Log lists are newest first.
type Snapshot struct {
	Version        uint64                       `json:"version"`
	Jobs           []model.Job                  `json:"jobs"`
	State          model.State                  `json:"state"`
	Setting        model.Setting                `json:"setting"`
	EncodeLog      []model.LogItem              `json:"encodeLog"`
	CheckLog       []model.CheckLogItem         `json:"checkLog"`
	Consoles       []model.ConsoleState         `json:"consoles"`
	Profiles       map[string]model.Profile     `json:"profiles"`
	AutoSelects    map[string]model.AutoSelect  `json:"autoSelects"`
	Services       map[int]model.ServiceSetting `json:"services"`
	Drcs           map[string]model.DrcsImage   `json:"drcs"`
	LastOperation  *event.OperationResult       `json:"lastOperation,omitempty"`
	CurrentLogPath string                       `json:"currentLogPath,omitempty"`
	ServerInfo     model.ServerInfo             `json:"serverInfo"`
	Disks          []model.DiskItem             `json:"disks"`
	CPU            model.CPUTopology            `json:"cpu"`
	Finish         *model.FinishSetting         `json:"finish,omitempty"`
}

// Snapshot copies the full mirrored state.
func (m *Mirror) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Version:        m.version,
		Jobs:           model.CloneJobs(m.jobs),
		State:          m.state.Clone(),
		Setting:        m.setting.Clone(),
		EncodeLog:      model.CloneLogs(m.encodeLog),
		CheckLog:       slices.Clone(m.checkLog),
		Consoles:       m.consolesLocked(),
		Profiles:       make(map[string]model.Profile, len(m.profiles)),
		AutoSelects:    make(map[string]model.AutoSelect, len(m.autoSelects)),
		Services:       model.CloneServices(m.services),
		Drcs:           model.CloneDrcs(m.drcs),
		CurrentLogPath: m.currentLogPath,
		ServerInfo:     m.serverInfo.Clone(),
		Disks:          slices.Clone(m.disks),
		CPU:            m.cpu.Clone(),
	}
	for _, p := range m.profiles {
		snap.Profiles[p.Name] = p.Clone()
	}
	for _, a := range m.autoSelects {
		snap.AutoSelects[a.Name] = a.Clone()
	}
	if m.lastOperation != nil {
		op := *m.lastOperation
		snap.LastOperation = &op
	}
	if m.finish != nil {
		finish := *m.finish
		snap.Finish = &finish
	}
	return snap
}

// Consoles returns copies of every console slot in ascending slot order.
func (m *Mirror) Consoles() []model.ConsoleState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consolesLocked()
}

// Console returns a copy of one slot.
func (m *Mirror) Console(id int) (model.ConsoleState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.consoles[id]
	if !ok {
		return model.ConsoleState{}, false
	}
	return m.consoleState(id, s), true
}

func (m *Mirror) consolesLocked() []model.ConsoleState {
	ids := slices.Sorted(maps.Keys(m.consoles))
	out := make([]model.ConsoleState, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.consoleState(id, m.consoles[id]))
	}
	return out
}

func (m *Mirror) consoleState(id int, s *slot) model.ConsoleState {
	suspended := id >= 0 && id < len(m.state.EncoderSuspended) && m.state.EncoderSuspended[id]
	return model.ConsoleState{
		Slot:      id,
		Lines:     s.buf.Lines(),
		Phase:     s.phase,
		Resource:  s.resource,
		Suspended: suspended,
	}
}
