//go:build linux

package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"encmirror/internal/model"
)

type linuxProbe struct {
	sysfs string
}

func newProbe() Probe {
	return linuxProbe{sysfs: "/sys/devices/system"}
}

func (p linuxProbe) Disks(paths []string) ([]model.DiskItem, error) {
	items := make([]model.DiskItem, 0, len(paths))
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		var st unix.Statfs_t
		if err := unix.Statfs(path, &st); err != nil {
			return nil, fmt.Errorf("statfs %s: %w", path, err)
		}
		bsize := int64(st.Bsize)
		items = append(items, model.DiskItem{
			Path:     path,
			Capacity: int64(st.Blocks) * bsize,
			Free:     int64(st.Bavail) * bsize,
		})
	}
	return items, nil
}

func (p linuxProbe) CPU() (model.CPUTopology, error) {
	threads := runtime.NumCPU()
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err == nil && set.Count() > 0 {
		threads = set.Count()
	}

	topo := model.CPUTopology{Threads: threads, Sockets: 1, Cores: threads, NUMANodes: 1}

	packages := map[string]struct{}{}
	cores := map[string]struct{}{}
	cpuDirs, _ := filepath.Glob(filepath.Join(p.sysfs, "cpu", "cpu[0-9]*"))
	for _, dir := range cpuDirs {
		pkg, err := readTrimmed(filepath.Join(dir, "topology", "physical_package_id"))
		if err != nil {
			continue
		}
		core, err := readTrimmed(filepath.Join(dir, "topology", "core_id"))
		if err != nil {
			continue
		}
		packages[pkg] = struct{}{}
		cores[pkg+":"+core] = struct{}{}
	}
	if len(packages) > 0 {
		topo.Sockets = len(packages)
		topo.Cores = len(cores)
	}

	nodeDirs, _ := filepath.Glob(filepath.Join(p.sysfs, "node", "node[0-9]*"))
	if len(nodeDirs) > 0 {
		topo.NUMANodes = len(nodeDirs)
		topo.Groups = make([]int, 0, len(nodeDirs))
		for _, dir := range nodeDirs {
			list, err := readTrimmed(filepath.Join(dir, "cpulist"))
			if err != nil {
				continue
			}
			topo.Groups = append(topo.Groups, countCPUList(list))
		}
	}
	return topo, nil
}

func readTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// countCPUList counts the cpus in a sysfs list such as "0-3,8,10-11".
func countCPUList(list string) int {
	total := 0
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(lo)
		if err != nil {
			continue
		}
		if !isRange {
			total++
			continue
		}
		end, err := strconv.Atoi(hi)
		if err != nil || end < start {
			continue
		}
		total += end - start + 1
	}
	return total
}
