package mirror

import (
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"encmirror/internal/changelog"
	"encmirror/internal/console"
	"encmirror/internal/event"
	"encmirror/internal/logging"
	"encmirror/internal/model"
)

// Options configures retention bounds.
type Options struct {
	ChangeHistory int
	ConsoleLines  int
	Logger        *slog.Logger
}

// Mirror is the thread-safe replica. The zero value is not usable; call New.
type Mirror struct {
	mu     sync.Mutex
	logger *slog.Logger

	version uint64
	jobs    []model.Job
	changes *changelog.Log

	state     model.State
	setting   model.Setting
	encodeLog []model.LogItem
	checkLog  []model.CheckLogItem

	consoleLines int
	consoles     map[int]*slot

	profiles    map[string]model.Profile
	autoSelects map[string]model.AutoSelect
	services    map[int]model.ServiceSetting
	drcs        map[string]model.DrcsImage

	lastOperation  *event.OperationResult
	currentLogPath string
	serverInfo     model.ServerInfo
	disks          []model.DiskItem
	cpu            model.CPUTopology
	finish         *model.FinishSetting
}

type slot struct {
	buf      *console.Buffer
	dec      *console.Decoder
	phase    string
	resource model.Resource
}

// New returns an empty mirror at version 0.
func New(opts Options) *Mirror {
	if opts.ConsoleLines <= 0 {
		opts.ConsoleLines = console.DefaultCapacity
	}
	return &Mirror{
		logger:       logging.NewComponentLogger(opts.Logger, "mirror"),
		changes:      changelog.New(opts.ChangeHistory),
		consoleLines: opts.ConsoleLines,
		consoles:     make(map[int]*slot),
		profiles:     make(map[string]model.Profile),
		autoSelects:  make(map[string]model.AutoSelect),
		services:     make(map[int]model.ServiceSetting),
		drcs:         make(map[string]model.DrcsImage),
	}
}

// Apply validates and applies one event. Malformed events are logged, leave
// the mirror untouched, and are reported with an error wrapping
// event.ErrMalformed.
func (m *Mirror) Apply(evt event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(evt)
}

// ApplyBatch applies events in order under a single lock acquisition. The
// outcome is identical to calling Apply for each event; errors for dropped
// events are joined.
func (m *Mirror) ApplyBatch(events []event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, evt := range events {
		if err := m.applyLocked(evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Version returns the current queue version.
func (m *Mirror) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

func (m *Mirror) applyLocked(evt event.Event) error {
	if err := event.Validate(evt); err != nil {
		m.drop(evt, err)
		return err
	}
	switch e := evt.(type) {
	case event.StateUpdate:
		m.state = e.State.Clone()
	case event.SettingUpdate:
		m.setting = e.Setting.Clone()
	case event.QueueSnapshot:
		m.replaceQueue(e.Jobs)
	case event.QueueDelta:
		m.applyQueueDelta(e)
	case event.LogSnapshot:
		m.encodeLog = newestFirst(model.CloneLogs(e.Items))
	case event.LogAppend:
		m.encodeLog = slices.Insert(m.encodeLog, 0, e.Item.Clone())
	case event.CheckLogSnapshot:
		m.checkLog = newestFirst(slices.Clone(e.Items))
	case event.CheckLogAppend:
		m.checkLog = slices.Insert(m.checkLog, 0, e.Item)
	case event.ConsoleSnapshot:
		s := m.slot(e.Slot)
		s.buf.Reset(e.Lines)
		s.dec.Reset()
	case event.ConsoleAppend:
		s := m.slot(e.Slot)
		s.dec.Write(s.buf, e.Data)
	case event.EncodeProgressUpdate:
		s := m.slot(e.Slot)
		s.phase = e.State.Phase
		s.resource = e.State.Resource
	case event.ProfileDelta:
		m.applyProfileDelta(e)
	case event.AutoSelectDelta:
		m.applyAutoSelectDelta(e)
	case event.ServiceSettingDelta:
		m.applyServiceDelta(e)
	case event.DrcsDelta:
		m.applyDrcsDelta(e)
	case event.OperationResult:
		op := e
		m.lastOperation = &op
	case event.CurrentLogFilePath:
		m.currentLogPath = e.Path
	case event.SleepCancelNotice:
		finish := e.Finish
		m.finish = &finish
	case event.ServerInfoUpdate:
		m.serverInfo = e.Info.Clone()
		for _, s := range m.consoles {
			s.dec.SetCodePage(m.serverInfo.CharSet)
		}
	case event.DiskInfoUpdate:
		m.disks = slices.Clone(e.Disks)
	case event.CPUTopologyUpdate:
		m.cpu = e.Topology.Clone()
	}
	return nil
}

func (m *Mirror) drop(evt event.Event, err error) {
	kind := "nil"
	if evt != nil {
		kind = string(evt.Kind())
	}
	m.logger.Warn("dropping malformed event",
		logging.String(logging.FieldEventKind, kind),
		logging.Error(err),
	)
}

func (m *Mirror) slot(id int) *slot {
	s, ok := m.consoles[id]
	if !ok {
		s = &slot{
			buf: console.NewBuffer(m.consoleLines),
			dec: console.NewDecoder(m.serverInfo.CharSet),
		}
		m.consoles[id] = s
	}
	return s
}

func newestFirst[T any](items []T) []T {
	slices.Reverse(items)
	return items
}

func (m *Mirror) applyProfileDelta(d event.ProfileDelta) {
	switch d.Type {
	case event.UpdateClear:
		clear(m.profiles)
	case event.UpdateRemove:
		delete(m.profiles, foldKey(d.Profile.Name))
	case event.UpdateAdd, event.UpdateUpdate:
		p := d.Profile.Clone()
		if d.NewName != "" && !strings.EqualFold(d.NewName, p.Name) {
			delete(m.profiles, foldKey(p.Name))
			p.Name = d.NewName
		}
		m.profiles[foldKey(p.Name)] = p
	}
}

func (m *Mirror) applyAutoSelectDelta(d event.AutoSelectDelta) {
	switch d.Type {
	case event.UpdateClear:
		clear(m.autoSelects)
	case event.UpdateRemove:
		delete(m.autoSelects, foldKey(d.AutoSelect.Name))
	case event.UpdateAdd, event.UpdateUpdate:
		a := d.AutoSelect.Clone()
		if d.NewName != "" && !strings.EqualFold(d.NewName, a.Name) {
			delete(m.autoSelects, foldKey(a.Name))
			a.Name = d.NewName
		}
		m.autoSelects[foldKey(a.Name)] = a
	}
}

func (m *Mirror) applyServiceDelta(d event.ServiceSettingDelta) {
	id := d.TargetID()
	switch d.Type {
	case event.UpdateClear:
		clear(m.services)
	case event.UpdateRemove:
		delete(m.services, id)
	case event.UpdateAdd, event.UpdateUpdate:
		svc := d.Data.Clone()
		svc.ServiceID = id
		m.services[id] = svc
	case event.UpdateRemoveLogo:
		svc, ok := m.services[id]
		if !ok || d.LogoIndex >= len(svc.LogoSettings) {
			return
		}
		svc.LogoSettings = slices.Delete(slices.Clone(svc.LogoSettings), d.LogoIndex, d.LogoIndex+1)
		m.services[id] = svc
	}
}

func (m *Mirror) applyDrcsDelta(d event.DrcsDelta) {
	for _, img := range d.All() {
		switch d.Type {
		case event.UpdateRemove:
			delete(m.drcs, img.MD5)
		case event.UpdateAdd, event.UpdateUpdate:
			m.drcs[img.MD5] = img.Clone()
		}
	}
}

func foldKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
