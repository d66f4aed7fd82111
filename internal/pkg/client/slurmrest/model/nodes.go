package model

import (
	"bytes"
	"encoding/json"
)

// Node slurmrestd(v0.0.39 及以后) 与 "scontrol --json show nodes" 输出的节点信息.
// 必需的数值字段使用指针, 以区分 "缺失" 与 "0".
type Node struct {
	Name        string    `json:"name"`        // 节点名称
	State       StateList `json:"state"`       // 节点状态, 可同时有多个
	Partitions  []string  `json:"partitions"`  // 分区名称
	CPUs        *int64    `json:"cpus"`        // 逻辑CPU
	AllocCPUs   *int64    `json:"alloc_cpus"`  // 已分配CPU
	RealMemory  *int64    `json:"real_memory"` // 内存大小, 单位 MB
	AllocMemory *int64    `json:"alloc_memory"`
	FreeMem     Number    `json:"free_mem"` // 空闲内存, 单位 MB
	CPULoad     Number    `json:"cpu_load"`
	Gres        string    `json:"gres"`      // 配置的通用资源, 例如 gpu:a100:4
	GresUsed    string    `json:"gres_used"` // 已使用的通用资源, 例如 gpu:a100:1(IDX:0)

	// Err 该节点无法解码(字段类型错误等). 此时只有 Name 可能有值.
	Err error `json:"-"`
}

// Nodes 节点列表. 逐个解码, 单个节点解码失败不影响其他节点;
// null 元素保留为 nil.
type Nodes []*Node

func (ns *Nodes) UnmarshalJSON(b []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	out := make(Nodes, 0, len(items))
	for _, item := range items {
		out = append(out, decodeNode(item))
	}
	*ns = out
	return nil
}

func decodeNode(item json.RawMessage) *Node {
	if bytes.Equal(bytes.TrimSpace(item), []byte("null")) {
		return nil
	}
	var n Node
	if err := json.Unmarshal(item, &n); err != nil {
		return &Node{Name: nodeName(item), Err: err}
	}
	return &n
}

// nodeName 尽量从无法解码的节点中取出名称.
func nodeName(item json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		return ""
	}
	var name string
	if err := json.Unmarshal(fields["name"], &name); err != nil {
		return ""
	}
	return name
}

// Error slurmrestd 响应中的错误信息.
type Error struct {
	Error       string `json:"error"`
	Description string `json:"description"`
	Source      string `json:"source"`
	ErrorNumber int    `json:"error_number"`
}

// NodesResponse GET /slurm/<version>/nodes 的响应.
type NodesResponse struct {
	Nodes    Nodes   `json:"nodes"`
	Errors   []Error `json:"errors"`
	Warnings []Error `json:"warnings"`
}

// Number slurm 的可选数值 {"set": true, "infinite": false, "number": 123}.
// 旧版本接口直接返回数值, 两种形式均可解析.
type Number struct {
	Set      bool        `json:"set"`
	Infinite bool        `json:"infinite"`
	Number   json.Number `json:"number"`
}

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = Number{}
		return nil
	}
	if len(b) > 0 && b[0] == '{' {
		type plain Number
		var p plain
		if err := json.Unmarshal(b, &p); err != nil {
			return err
		}
		*n = Number(p)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*n = Number{Set: true, Number: num}
	return nil
}

// Valid 数值已设置且不是无穷大.
func (n Number) Valid() bool {
	return n.Set && !n.Infinite && n.Number != ""
}

// StateList 节点状态. 新版本接口为数组, 旧版本为字符串(例如 "mixed" 或 "MIXED+DRAIN").
type StateList []string

func (s *StateList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		if str == "" {
			*s = StateList{}
			return nil
		}
		*s = StateList{str}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*s = list
	return nil
}
