package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"slurm-avail/internal/pkg/client/slurmrest/model"
	"slurm-avail/internal/pkg/node"
)

// ParseJSON 解析 "scontrol --json show nodes" 的输出, 格式与 slurmrestd 的 nodes 接口相同.
func ParseJSON(data []byte) ([]node.RawRecord, error) {
	var resp model.NodesResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unable to decode nodes: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("slurm error: %s %s", resp.Errors[0].Error, resp.Errors[0].Description)
	}
	return FromModel(resp.Nodes), nil
}

var errNullNode = errors.New("null node entry")

// FromModel 将结构化节点信息转换为原始记录. 缺失或未设置的数值字段不写入 Fields,
// 由 node.Normalize 判定为缺失. null 或无法解码的节点转换为带 Err 的记录, 每个输入元素
// 都对应一条记录; 没有名称时以 "index N" 命名.
func FromModel(nodes model.Nodes) []node.RawRecord {
	records := make([]node.RawRecord, 0, len(nodes))
	for i, n := range nodes {
		if n == nil {
			records = append(records, node.RawRecord{Name: indexName(i), Err: errNullNode})
			continue
		}
		name := n.Name
		if name == "" {
			name = indexName(i)
		}
		if n.Err != nil {
			records = append(records, node.RawRecord{Name: name, Err: n.Err})
			continue
		}
		fields := map[string]string{
			node.FieldGres:     n.Gres,
			node.FieldGresUsed: n.GresUsed,
		}
		if len(n.State) > 0 {
			fields[node.FieldState] = strings.Join(n.State, "+")
		}
		setInt(fields, node.FieldCPUTotal, n.CPUs)
		setInt(fields, node.FieldCPUAlloc, n.AllocCPUs)
		setInt(fields, node.FieldMemTotal, n.RealMemory)
		setInt(fields, node.FieldMemAlloc, n.AllocMemory)
		if n.FreeMem.Valid() {
			fields[node.FieldMemFree] = n.FreeMem.Number.String()
		}
		// 结构化输出中 cpu_load 为实际负载 * 100.
		if n.CPULoad.Valid() {
			if load, err := n.CPULoad.Number.Float64(); err == nil {
				fields[node.FieldCPULoad] = strconv.FormatFloat(load/100, 'f', 2, 64)
			} else {
				fields[node.FieldCPULoad] = n.CPULoad.Number.String()
			}
		}
		records = append(records, node.RawRecord{Name: name, Fields: fields})
	}
	return records
}

func indexName(i int) string {
	return fmt.Sprintf("index %d", i)
}

func setInt(fields map[string]string, key string, v *int64) {
	if v != nil {
		fields[key] = strconv.FormatInt(*v, 10)
	}
}
