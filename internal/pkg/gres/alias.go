package gres

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Resolver 将 slurm 中的 GPU 型号(raw type)映射为简短的展示名称.
// Resolve 必须是全函数: 未知型号原样返回, 不产生错误.
type Resolver interface {
	Resolve(raw string) string
}

// DefaultAliases 常见 GPU 型号的简称. 同一物理型号的不同厂商写法映射到同一简称.
var DefaultAliases = map[string]string{
	"nvidia_v100-sxm2-32gb":      "v100_32G",
	"tesla_v100-sxm2-32gb":       "v100_32G",
	"nvidia_a100-pcie-40gb":      "a100_40G",
	"nvidia_a100_80gb_pcie":      "a100_80G",
	"quadro_rtx_6000":            "Qrtx6000_24G",
	"nvidia_titan_rtx":           "titanrtx_24G",
	"nvidia_geforce_rtx_3090":    "rtx3090_24G",
	"nvidia_geforce_rtx_4090":    "rtx4090_24G",
	"nvidia_geforce_rtx_2080_ti": "rtx2080ti_11G",
	"nvidia_geforce_gtx_1080_ti": "gtx1080ti_11G",
}

// Aliases 静态的型号简称表, 构造后只读, 可被并发使用.
type Aliases struct {
	forward map[string]string // raw type -> label
	reverse map[string]string // label -> raw type
}

// NewAliases 由若干映射表构造 Aliases, 后面的映射表覆盖前面的同名条目.
func NewAliases(tables ...map[string]string) *Aliases {
	a := &Aliases{
		forward: make(map[string]string),
		reverse: make(map[string]string),
	}
	for _, t := range tables {
		for raw, label := range t {
			if raw == "" || label == "" {
				continue
			}
			a.forward[raw] = label
		}
	}
	// 多个型号共享同一简称时, 反查取字典序最小的型号, 保证输出稳定.
	raws := make([]string, 0, len(a.forward))
	for raw := range a.forward {
		raws = append(raws, raw)
	}
	sort.Strings(raws)
	for _, raw := range raws {
		label := a.forward[raw]
		if _, ok := a.reverse[label]; !ok {
			a.reverse[label] = raw
		}
	}
	return a
}

// Resolve 返回 raw 对应的简称, 未登记的型号原样返回.
func (a *Aliases) Resolve(raw string) string {
	if a == nil {
		return raw
	}
	if label, ok := a.forward[raw]; ok {
		return label
	}
	return raw
}

// Reverse 由简称反查一个 slurm 型号, 仅用于诊断输出.
func (a *Aliases) Reverse(label string) (string, bool) {
	if a == nil {
		return "", false
	}
	raw, ok := a.reverse[label]
	return raw, ok
}

// Len 返回登记的型号数量.
func (a *Aliases) Len() int {
	if a == nil {
		return 0
	}
	return len(a.forward)
}

// aliasFile 简称配置文件格式:
//
//	aliases:
//	  nvidia_h100_80gb_hbm3: h100_80G
//	  nvidia_l40s: l40s_48G
type aliasFile struct {
	Aliases map[string]string `yaml:"aliases"`
}

// LoadAliasFile 读取 YAML 格式的简称配置文件.
func LoadAliasFile(filename string) (map[string]string, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("unable to read gpu alias file(%s): %w", filename, err)
	}
	var f aliasFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("unable to parse gpu alias file(%s): %w", filename, err)
	}
	if f.Aliases == nil {
		f.Aliases = map[string]string{}
	}
	return f.Aliases, nil
}
