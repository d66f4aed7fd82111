package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"slurm-avail/internal/pkg/availability"
	"slurm-avail/internal/pkg/common/slurm"
)

// Options 输出选项.
type Options struct {
	Filter           Filter
	PrintFailedNodes bool // 输出解析失败的节点
	ShowRawTypes     bool // 集群汇总中附带 slurm 的 GPU 型号
	NoColor          bool
}

// TextPrinter 以文本形式输出报告.
type TextPrinter struct {
	w       io.Writer
	opts    Options
	reverse availability.Reverser
	red     *color.Color
	yellow  *color.Color
}

// NewTextPrinter 创建 TextPrinter. reverse 用于 ShowRawTypes, 可以为 nil.
func NewTextPrinter(w io.Writer, opts Options, reverse availability.Reverser) *TextPrinter {
	p := &TextPrinter{
		w:       w,
		opts:    opts,
		reverse: reverse,
		red:     color.New(color.FgRed),
		yellow:  color.New(color.FgYellow),
	}
	if opts.NoColor {
		p.red.DisableColor()
		p.yellow.DisableColor()
	} else {
		// 是否着色只由 NoColor 决定, 不检测终端.
		p.red.EnableColor()
		p.yellow.EnableColor()
	}
	return p
}

// Print 依次输出节点列表, 集群可用 GPU 与解析失败的节点.
func (p *TextPrinter) Print(rp availability.Report) error {
	for _, m := range p.opts.Filter.Apply(rp.Nodes) {
		if _, err := fmt.Fprintln(p.w, p.NodeLine(m)); err != nil {
			return err
		}
	}
	if err := p.printAggregate(rp.GPUs); err != nil {
		return err
	}
	if p.opts.PrintFailedNodes {
		_, err := fmt.Fprintf(p.w, "\nNodes failed to be parsed: [%s]\n", strings.Join(rp.FailedNames(), ", "))
		return err
	}
	return nil
}

// NodeLine 单个节点的输出行.
func (p *TextPrinter) NodeLine(m availability.NodeMetrics) string {
	line := fmt.Sprintf("%-15scpu_aval:%2d/%2d\tmem_aval:%6.2f/%6.2fGB\tcpu_use:%5.2f\tmem_use:%3d%%",
		m.Name, m.CPUFree, m.CPUTotal, m.MemFreeGB, m.MemTotalGB, m.CPULoad, int(m.MemUsedRatio*100))

	tail := fmt.Sprintf("gpu_avail: %s\tstate:%s", m.GPUs.String(), m.State.String())
	if c := p.colorOf(Level(m)); c != nil {
		tail = c.Sprint(tail)
	}
	return line + "\t" + tail
}

func (p *TextPrinter) colorOf(s slurm.Severity) *color.Color {
	switch s {
	case slurm.SeverityCritical:
		return p.red
	case slurm.SeverityWarning:
		return p.yellow
	}
	return nil
}

func (p *TextPrinter) printAggregate(agg *availability.Aggregate) error {
	if _, err := fmt.Fprintln(p.w, "\nAggregate Available GPUs:"); err != nil {
		return err
	}
	if agg == nil {
		return nil
	}
	var rev availability.Reverser
	if p.opts.ShowRawTypes {
		rev = p.reverse
	}
	for _, e := range agg.Entries(rev) {
		var err error
		if e.Raw != "" {
			_, err = fmt.Fprintf(p.w, "%s (%s): %d\n", e.Label, e.Raw, e.Free)
		} else {
			_, err = fmt.Fprintf(p.w, "%s: %d\n", e.Label, e.Free)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Level 节点的显示等级: 没有空闲 CPU, 或有 GPU 但全部已分配, 或状态异常时为 critical;
// 状态需要关注(DRAIN, RESERVED 等)时为 warning.
func Level(m availability.NodeMetrics) slurm.Severity {
	if m.CPUFree <= 0 || (m.HasGPUs() && m.GPUs.Free() <= 0) {
		return slurm.SeverityCritical
	}
	return m.State.Severity()
}
