package model

import (
	"cmp"
	"maps"
	"slices"
	"time"
)

// Profile is a named encode profile. Body carries the encoder settings as an
// opaque encoded document; the mirror never interprets it.
type Profile struct {
	Name       string    `json:"name"`
	LastUpdate time.Time `json:"lastUpdate"`
	Body       []byte    `json:"body,omitempty"`
}

func (p Profile) Clone() Profile {
	p.Body = slices.Clone(p.Body)
	return p
}

// AutoSelect is a named rule set that picks a profile from recording metadata.
type AutoSelect struct {
	Name       string    `json:"name"`
	LastUpdate time.Time `json:"lastUpdate"`
	Body       []byte    `json:"body,omitempty"`
}

func (a AutoSelect) Clone() AutoSelect {
	a.Body = slices.Clone(a.Body)
	return a
}

// LogoSetting is one logo file registered for a broadcast service.
type LogoSetting struct {
	FileName string    `json:"fileName"`
	LogoName string    `json:"logoName,omitempty"`
	Enabled  bool      `json:"enabled"`
	Exists   bool      `json:"exists"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
}

// ServiceSetting holds per-service processing overrides.
type ServiceSetting struct {
	ServiceID      int           `json:"serviceId"`
	ServiceName    string        `json:"serviceName"`
	DisableCMCheck bool          `json:"disableCmCheck"`
	JLSCommand     string        `json:"jlsCommand,omitempty"`
	JLSOption      string        `json:"jlsOption,omitempty"`
	LogoSettings   []LogoSetting `json:"logoSettings,omitempty"`
}

func (s ServiceSetting) Clone() ServiceSetting {
	s.LogoSettings = slices.Clone(s.LogoSettings)
	return s
}

// DrcsImage maps one DRCS glyph, identified by the MD5 of its bitmap, to text.
type DrcsImage struct {
	MD5        string   `json:"md5"`
	MapStr     string   `json:"mapStr,omitempty"`
	SourceList []string `json:"sourceList,omitempty"`
	Image      []byte   `json:"image,omitempty"`
}

func (d DrcsImage) Clone() DrcsImage {
	d.SourceList = slices.Clone(d.SourceList)
	d.Image = slices.Clone(d.Image)
	return d
}

// Setting is the encode server's global configuration. Only the fields the
// mirror acts on are decoded; the rest travel in Body.
type Setting struct {
	HideOneSeg  bool   `json:"hideOneSeg"`
	NumParallel int    `json:"numParallel"`
	Body        []byte `json:"body,omitempty"`
}

func (s Setting) Clone() Setting {
	s.Body = slices.Clone(s.Body)
	return s
}

// FinishAction is what the encode server does once the queue drains.
type FinishAction string

const (
	FinishNone      FinishAction = "None"
	FinishSuspend   FinishAction = "Suspend"
	FinishHibernate FinishAction = "Hibernate"
	FinishShutdown  FinishAction = "Shutdown"
)

// FinishSetting describes the scheduled post-queue power action.
type FinishSetting struct {
	Action  FinishAction `json:"action"`
	Seconds int          `json:"seconds"`
}

func cloneMap[K comparable, V any](in map[K]V, clone func(V) V) map[K]V {
	if in == nil {
		return nil
	}
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = clone(v)
	}
	return out
}

// CloneProfiles deep-copies a profile map.
func CloneProfiles(in map[string]Profile) map[string]Profile {
	return cloneMap(in, Profile.Clone)
}

// CloneAutoSelects deep-copies an auto-select map.
func CloneAutoSelects(in map[string]AutoSelect) map[string]AutoSelect {
	return cloneMap(in, AutoSelect.Clone)
}

// CloneServices deep-copies a service setting map.
func CloneServices(in map[int]ServiceSetting) map[int]ServiceSetting {
	return cloneMap(in, ServiceSetting.Clone)
}

// CloneDrcs deep-copies a DRCS image map.
func CloneDrcs(in map[string]DrcsImage) map[string]DrcsImage {
	return cloneMap(in, DrcsImage.Clone)
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}
