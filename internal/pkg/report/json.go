package report

import (
	"encoding/json"
	"io"
	"time"

	"slurm-avail/internal/pkg/availability"
	ctime "slurm-avail/internal/pkg/common/time"
)

// Document JSON 输出格式.
type Document struct {
	CollectedAt ctime.Time                 `json:"collected_at"`
	Nodes       []availability.NodeMetrics `json:"nodes"`
	GPUs        []availability.Entry       `json:"gpus"`
	FailedNodes []string                   `json:"failed_nodes,omitempty"`
}

// NewDocument 由报告生成 JSON 文档, 节点列表按 Options.Filter 过滤.
func NewDocument(rp availability.Report, opts Options, reverse availability.Reverser, at time.Time) Document {
	doc := Document{
		CollectedAt: ctime.Time(at),
		Nodes:       opts.Filter.Apply(rp.Nodes),
		GPUs:        []availability.Entry{},
	}
	if rp.GPUs != nil {
		var rev availability.Reverser
		if opts.ShowRawTypes {
			rev = reverse
		}
		doc.GPUs = rp.GPUs.Entries(rev)
	}
	if opts.PrintFailedNodes {
		doc.FailedNodes = rp.FailedNames()
	}
	return doc
}

// WriteJSON 以 JSON 格式输出报告.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
