package gres

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// 配置资源, 例如 "gpu:nvidia_a100-pcie-40gb:4(S:0-1),shard:8".
	configuredGPU = regexp.MustCompile(`gpu:([a-zA-Z0-9_\-]+):(\d+)`)
	// 已分配资源, GresUsed 形式 "gpu:nvidia_a100-pcie-40gb:1(IDX:0)",
	// 或 AllocTRES 形式 "cpu=4,mem=16G,gres/gpu=1,gres/gpu:nvidia_a100-pcie-40gb=1".
	usedGPU = regexp.MustCompile(`gpu:([a-zA-Z0-9_\-]+)[:=](\d+)`)
)

// TypeCount 节点上某一 GPU 型号的数量.
type TypeCount struct {
	Label     string `json:"label"`     // 型号简称
	Raw       string `json:"raw"`       // 首次出现的 slurm 型号
	Total     int64  `json:"total"`     // 配置总数
	Allocated int64  `json:"allocated"` // 已分配数
}

// Free 可用数量. 上游数据不一致时可能为负数, 不做截断.
func (c TypeCount) Free() int64 {
	return c.Total - c.Allocated
}

// Inventory 节点的 GPU 清单, 按型号首次出现的顺序排列.
type Inventory []TypeCount

// Index 返回简称为 label 的条目下标, 不存在时返回 -1.
func (inv Inventory) Index(label string) int {
	for i := range inv {
		if inv[i].Label == label {
			return i
		}
	}
	return -1
}

// Get 返回简称为 label 的条目.
func (inv Inventory) Get(label string) (TypeCount, bool) {
	if i := inv.Index(label); i >= 0 {
		return inv[i], true
	}
	return TypeCount{}, false
}

// Total 所有型号的配置总数.
func (inv Inventory) Total() int64 {
	var n int64
	for _, c := range inv {
		n += c.Total
	}
	return n
}

// Free 所有型号的可用总数.
func (inv Inventory) Free() int64 {
	var n int64
	for _, c := range inv {
		n += c.Free()
	}
	return n
}

// Parse 解析节点的配置资源(gres)与已分配资源(gresUsed)字符串, 得到每个 GPU 型号的总数与已分配数.
//   - gres 中的每个 gpu:<type>:<count> 都会被记录, 其他类型的资源被忽略;
//   - gresUsed 中的型号只有在 gres 中出现过时才更新已分配数, 否则丢弃;
//   - 解析到同一简称的多个条目累加.
func Parse(gres, gresUsed string, r Resolver) Inventory {
	inv := make(Inventory, 0)
	for _, m := range configuredGPU.FindAllStringSubmatch(gres, -1) {
		count, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			continue
		}
		label := resolve(r, m[1])
		if i := inv.Index(label); i >= 0 {
			inv[i].Total += count
			continue
		}
		inv = append(inv, TypeCount{Label: label, Raw: m[1], Total: count})
	}
	if len(inv) == 0 {
		return inv
	}

	for _, m := range usedGPU.FindAllStringSubmatch(gresUsed, -1) {
		count, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			continue
		}
		if i := inv.Index(resolve(r, m[1])); i >= 0 {
			inv[i].Allocated += count
		}
	}
	return inv
}

func resolve(r Resolver, raw string) string {
	if r == nil {
		return raw
	}
	return r.Resolve(raw)
}

// String 输出形如 "a100_40G(3/4), v100_32G(0/2)".
func (inv Inventory) String() string {
	var sb strings.Builder
	for i, c := range inv {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.Label)
		sb.WriteByte('(')
		sb.WriteString(strconv.FormatInt(c.Free(), 10))
		sb.WriteByte('/')
		sb.WriteString(strconv.FormatInt(c.Total, 10))
		sb.WriteByte(')')
	}
	return sb.String()
}
