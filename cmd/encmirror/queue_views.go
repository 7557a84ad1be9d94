package main

import (
	"fmt"
	"slices"
	"strings"

	"encmirror/internal/config"
	"encmirror/internal/datafile"
	"encmirror/internal/view"
)

// savedView is a named queue filter kept in the filters data file.
type savedView struct {
	Name   string      `json:"name"`
	Filter view.Filter `json:"filter"`
}

type viewStore struct {
	file *datafile.File[savedView]
}

func openViewStore(ctx *commandContext, cfg *config.Config) *viewStore {
	return &viewStore{file: datafile.New[savedView](cfg.FiltersPath(), ctx.logger())}
}

func (s *viewStore) list() ([]savedView, error) {
	views, err := s.file.Read()
	if err != nil {
		return nil, fmt.Errorf("load saved views: %w", err)
	}
	slices.SortFunc(views, func(a, b savedView) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return views, nil
}

func (s *viewStore) get(name string) (view.Filter, error) {
	views, err := s.list()
	if err != nil {
		return view.Filter{}, err
	}
	for _, v := range views {
		if strings.EqualFold(v.Name, name) {
			return v.Filter, nil
		}
	}
	return view.Filter{}, fmt.Errorf("no saved view named %q", name)
}

// put stores filter under name, replacing a view with the same name.
func (s *viewStore) put(name string, filter view.Filter) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("view name is required")
	}
	views, err := s.list()
	if err != nil {
		return err
	}
	views = slices.DeleteFunc(views, func(v savedView) bool { return strings.EqualFold(v.Name, name) })
	views = append(views, savedView{Name: name, Filter: filter})
	return s.file.Save(views)
}

func (s *viewStore) remove(name string) (bool, error) {
	views, err := s.list()
	if err != nil {
		return false, err
	}
	kept := slices.DeleteFunc(slices.Clone(views), func(v savedView) bool { return strings.EqualFold(v.Name, name) })
	if len(kept) == len(views) {
		return false, nil
	}
	return true, s.file.Save(kept)
}

func describeFilter(f view.Filter) string {
	var parts []string
	if len(f.States) > 0 {
		parts = append(parts, "state="+strings.Join(f.States, ","))
	}
	if f.Search != "" {
		target := "all"
		if len(f.SearchTargets) > 0 {
			names := make([]string, len(f.SearchTargets))
			for i, t := range f.SearchTargets {
				names[i] = string(t)
			}
			target = strings.Join(names, ",")
		}
		parts = append(parts, fmt.Sprintf("search=%q in %s", f.Search, target))
	}
	if f.DateFrom != nil {
		parts = append(parts, "from="+f.DateFrom.Format("2006-01-02"))
	}
	if f.DateTo != nil {
		parts = append(parts, "to="+f.DateTo.Format("2006-01-02"))
	}
	if f.HideOneSeg {
		parts = append(parts, "hide-oneseg")
	}
	if len(parts) == 0 {
		return "(all)"
	}
	return strings.Join(parts, " ")
}
