package source

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"slurm-avail/internal/pkg/node"
)

// scontrol key=value 输出的字段名 -> 规范字段名.
var legacyKeys = map[string]string{
	"State":      node.FieldState,
	"CPUTot":     node.FieldCPUTotal,
	"CPUAlloc":   node.FieldCPUAlloc,
	"RealMemory": node.FieldMemTotal,
	"AllocMem":   node.FieldMemAlloc,
	"FreeMem":    node.FieldMemFree,
	"CPULoad":    node.FieldCPULoad,
	"Gres":       node.FieldGres,
	"GresUsed":   node.FieldGresUsed,
}

// 值中可能含有空格的自由文本字段.
var legacyFreeText = map[string]bool{
	"OS":      true,
	"Reason":  true,
	"Comment": true,
	"Extra":   true,
}

const (
	legacyNodeName  = "NodeName"
	legacyAllocTRES = "AllocTRES"
)

// ParseLegacy 解析 "scontrol show nodes" 的 key=value 输出.
//
// 同时支持单行(-o)与多行格式: 以非空白字符开头的行开始一个新节点, 缩进行属于上一个节点.
// 自由文本字段的值可能含有空格(例如 OS=Linux 5.14.0 #1 SMP), 其后不含 "=" 的 token
// 追加到该值. 其他位置出现不是 key=value 的 token 时, 该节点记为结构错误, 由 node.Normalize 拒绝.
func ParseLegacy(data []byte) []node.RawRecord {
	var (
		records []node.RawRecord
		block   []string
		start   int
	)
	flush := func() {
		if len(block) > 0 {
			records = append(records, parseLegacyBlock(block, start))
		}
		block = nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		indented := line[0] == ' ' || line[0] == '\t'
		if !indented || len(block) == 0 {
			flush()
			start = lineNo
		}
		block = append(block, strings.Fields(line)...)
	}
	flush()
	return records
}

func parseLegacyBlock(tokens []string, lineNo int) node.RawRecord {
	raw := node.RawRecord{Fields: make(map[string]string)}
	values := make(map[string]string, len(tokens))
	var last string

	for i, tok := range tokens {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			if i == 0 || !legacyFreeText[last] {
				raw.Err = fmt.Errorf("token %q is not key=value", tok)
				break
			}
			values[last] += " " + tok
			continue
		}
		last = key
		values[key] = value
	}

	raw.Name = values[legacyNodeName]
	if raw.Name == "" {
		raw.Name = fmt.Sprintf("line %d", lineNo)
	}
	if raw.Err != nil {
		return raw
	}

	for from, to := range legacyKeys {
		if v, ok := values[from]; ok {
			raw.Fields[to] = v
		}
	}
	// 部分版本不输出 GresUsed, 此时从 AllocTRES(gres/gpu:a100=1) 获取已分配 GPU.
	if _, ok := raw.Fields[node.FieldGresUsed]; !ok {
		if v, ok := values[legacyAllocTRES]; ok {
			raw.Fields[node.FieldGresUsed] = v
		}
	}
	return raw
}
