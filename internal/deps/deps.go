package deps

import (
	"os/exec"
	"strings"

	"encmirror/internal/config"
)

// Tool is an external binary the daemon may execute.
type Tool struct {
	Name     string
	Command  string
	Purpose  string
	Optional bool
}

// Availability is the lookup result for one Tool. Path is the resolved
// executable when Available is set; Detail explains a failed lookup.
type Availability struct {
	Tool
	Available bool
	Path      string
	Detail    string
}

// Probe resolves each tool on PATH.
func Probe(tools []Tool) []Availability {
	out := make([]Availability, len(tools))
	for i, tool := range tools {
		tool.Command = strings.TrimSpace(tool.Command)
		out[i] = Availability{Tool: tool}
		switch path, err := exec.LookPath(tool.Command); {
		case tool.Command == "":
			out[i].Detail = "command not configured"
		case err != nil:
			out[i].Detail = "binary " + tool.Command + " not found"
		default:
			out[i].Available = true
			out[i].Path = path
		}
	}
	return out
}

// PreviewTools lists the binaries frame preview sessions run. Both are
// optional; without them only previews fail.
func PreviewTools(cfg *config.Config) []Tool {
	return []Tool{
		{Name: "FFmpeg", Command: cfg.Preview.FFmpegBinary, Purpose: "Extracts preview frames", Optional: true},
		{Name: "FFprobe", Command: ResolveFFprobe(cfg.Preview.FFmpegBinary, cfg.Preview.FFprobeBinary), Purpose: "Reads the service table of a recording", Optional: true},
	}
}

// CheckPreviewTools probes PreviewTools(cfg).
func CheckPreviewTools(cfg *config.Config) []Availability {
	if cfg == nil {
		return nil
	}
	return Probe(PreviewTools(cfg))
}
