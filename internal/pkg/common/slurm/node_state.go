package slurm

import (
	"encoding/json"
	"strings"
)

// NodeState 节点状态位. 与 slurm 不同, 基础状态也占用独立的位, 便于表达
// "一个节点同时处于多个状态" (例如 MIXED+RESERVED).
type NodeState uint64

const (
	NODE_STATE_UNKNOWN          NodeState = 1 << iota // node's initial state, unknown
	NODE_STATE_DOWN                                   // node in non-usable state
	NODE_STATE_IDLE                                   // node idle and available for use
	NODE_STATE_ALLOCATED                              // node has been allocated to a job
	NODE_STATE_ERROR                                  // node is in an error state
	NODE_STATE_MIXED                                  // node has a mixed state
	NODE_STATE_FUTURE                                 // node slot reserved for future use
	NODE_STATE_DRAIN                                  // do not allocate new work
	NODE_STATE_COMPLETING                             // node is completing allocated job
	NODE_STATE_NO_RESPOND                             // node is not responding
	NODE_STATE_POWERED_DOWN                           // node is powered down
	NODE_STATE_POWERING_UP                            // node is powering up
	NODE_STATE_POWERING_DOWN                          // node is powering down
	NODE_STATE_POWER_DOWN                             // node pending power down
	NODE_STATE_FAIL                                   // node is failing, do not allocate new work
	NODE_STATE_MAINT                                  // node in maintenance reservation
	NODE_STATE_REBOOT_REQUESTED                       // node reboot requested
	NODE_STATE_REBOOT_ISSUED                          // node reboot issued
	NODE_STATE_RES                                    // node is reserved
	NODE_STATE_PLANNED                                // node planned by the backfill scheduler
	NODE_STATE_CLOUD                                  // node comes from cloud
	NODE_STATE_DYNAMIC                                // dynamic node
	NODE_STATE_INVALID_REG                            // node did not register correctly
	NODE_STATE_BLOCKED                                // node blocked by another job
)

// 规范名称, 顺序即 Tokens 的输出顺序.
var nodeStateNames = []struct {
	state NodeState
	name  string
}{
	{NODE_STATE_UNKNOWN, "UNKNOWN"},
	{NODE_STATE_DOWN, "DOWN"},
	{NODE_STATE_IDLE, "IDLE"},
	{NODE_STATE_ALLOCATED, "ALLOCATED"},
	{NODE_STATE_ERROR, "ERROR"},
	{NODE_STATE_MIXED, "MIXED"},
	{NODE_STATE_FUTURE, "FUTURE"},
	{NODE_STATE_DRAIN, "DRAIN"},
	{NODE_STATE_COMPLETING, "COMPLETING"},
	{NODE_STATE_NO_RESPOND, "NOT_RESPONDING"},
	{NODE_STATE_POWERED_DOWN, "POWERED_DOWN"},
	{NODE_STATE_POWERING_UP, "POWERING_UP"},
	{NODE_STATE_POWERING_DOWN, "POWERING_DOWN"},
	{NODE_STATE_POWER_DOWN, "POWER_DOWN"},
	{NODE_STATE_FAIL, "FAIL"},
	{NODE_STATE_MAINT, "MAINTENANCE"},
	{NODE_STATE_REBOOT_REQUESTED, "REBOOT_REQUESTED"},
	{NODE_STATE_REBOOT_ISSUED, "REBOOT_ISSUED"},
	{NODE_STATE_RES, "RESERVED"},
	{NODE_STATE_PLANNED, "PLANNED"},
	{NODE_STATE_CLOUD, "CLOUD"},
	{NODE_STATE_DYNAMIC, "DYNAMIC"},
	{NODE_STATE_INVALID_REG, "INVALID_REG"},
	{NODE_STATE_BLOCKED, "BLOCKED"},
}

// scontrol/sinfo 输出中出现的其他写法.
var nodeStateAliases = map[string]NodeState{
	"ALLOC":          NODE_STATE_ALLOCATED,
	"MIX":            NODE_STATE_MIXED,
	"FUTR":           NODE_STATE_FUTURE,
	"DRAINED":        NODE_STATE_DRAIN,
	"DRAINING":       NODE_STATE_DRAIN,
	"DRNG":           NODE_STATE_DRAIN,
	"DRAIN_REQ":      NODE_STATE_DRAIN,
	"COMP":           NODE_STATE_COMPLETING,
	"NO_RESPOND":     NODE_STATE_NO_RESPOND,
	"FAILING":        NODE_STATE_FAIL,
	"MAINT":          NODE_STATE_MAINT,
	"RESV":           NODE_STATE_RES,
	"RES":            NODE_STATE_RES,
	"PLND":           NODE_STATE_PLANNED,
	"DYNAMIC_FUTURE": NODE_STATE_DYNAMIC,
	"DYNAMIC_NORM":   NODE_STATE_DYNAMIC,
	"POWERED_OFF":    NODE_STATE_POWERED_DOWN,
	"REBOOT":         NODE_STATE_REBOOT_REQUESTED,
	"INVAL":          NODE_STATE_INVALID_REG,
	"BLOCK":          NODE_STATE_BLOCKED,
}

// sinfo 风格的状态后缀符号.
var nodeStateSuffixes = map[byte]NodeState{
	'*': NODE_STATE_NO_RESPOND,
	'~': NODE_STATE_POWERED_DOWN,
	'#': NODE_STATE_POWERING_UP,
	'%': NODE_STATE_POWERING_DOWN,
	'!': NODE_STATE_POWER_DOWN,
	'$': NODE_STATE_MAINT,
	'@': NODE_STATE_REBOOT_REQUESTED,
	'^': NODE_STATE_REBOOT_ISSUED,
	'-': NODE_STATE_PLANNED,
}

// String 返回单个状态位的名称, 组合状态以 '+' 连接.
func (s NodeState) String() string {
	names := make([]string, 0, 2)
	for _, n := range nodeStateNames {
		if s&n.state != 0 {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "?"
	}
	return strings.Join(names, "+")
}

// Severity 节点状态严重程度, 用于输出着色.
type Severity int

const (
	SeverityNormal Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "normal"
	}
}

const (
	criticalStates = NODE_STATE_DOWN | NODE_STATE_ERROR | NODE_STATE_FAIL | NODE_STATE_NO_RESPOND
	warningStates  = NODE_STATE_UNKNOWN | NODE_STATE_FUTURE | NODE_STATE_DRAIN | NODE_STATE_COMPLETING |
		NODE_STATE_POWERED_DOWN | NODE_STATE_POWERING_UP | NODE_STATE_POWERING_DOWN | NODE_STATE_POWER_DOWN |
		NODE_STATE_MAINT | NODE_STATE_REBOOT_REQUESTED | NODE_STATE_REBOOT_ISSUED | NODE_STATE_RES |
		NODE_STATE_PLANNED | NODE_STATE_INVALID_REG | NODE_STATE_BLOCKED
)

// StateSet 节点同时具有的状态集合. 无法识别的状态名原样保留, 仅用于展示.
type StateSet struct {
	mask  NodeState
	extra []string
}

// NewStateSet 由状态名列表构造状态集合, 对应 JSON 输出中的 "state": ["MIXED", "RESERVED"].
func NewStateSet(tokens ...string) StateSet {
	var set StateSet
	for _, tok := range tokens {
		set.add(tok)
	}
	return set
}

// ParseStateSet 解析 scontrol 输出中的 State 字段, 例如 "MIXED+DRAIN+RESERVED", "IDLE*", "DOWN~".
func ParseStateSet(s string) StateSet {
	return NewStateSet(strings.Split(s, "+")...)
}

func (s *StateSet) add(tok string) {
	tok = strings.ToUpper(strings.TrimSpace(tok))
	for len(tok) > 1 {
		flag, ok := nodeStateSuffixes[tok[len(tok)-1]]
		if !ok {
			break
		}
		s.mask |= flag
		tok = tok[:len(tok)-1]
	}
	if tok == "" {
		return
	}
	if st, ok := lookupNodeState(tok); ok {
		s.mask |= st
		return
	}
	for _, e := range s.extra {
		if e == tok {
			return
		}
	}
	s.extra = append(s.extra, tok)
}

func lookupNodeState(name string) (NodeState, bool) {
	for _, n := range nodeStateNames {
		if n.name == name {
			return n.state, true
		}
	}
	st, ok := nodeStateAliases[name]
	return st, ok
}

// Has 当集合包含 st 的全部状态位时返回 true.
func (s StateSet) Has(st NodeState) bool {
	return st != 0 && s.mask&st == st
}

// Any 当集合与 st 至少有一个共同状态位时返回 true.
func (s StateSet) Any(st NodeState) bool {
	return s.mask&st != 0
}

// Mask 返回已识别状态的位掩码.
func (s StateSet) Mask() NodeState { return s.mask }

// Empty 集合中没有任何状态(包括无法识别的状态).
func (s StateSet) Empty() bool { return s.mask == 0 && len(s.extra) == 0 }

// Tokens 按规范顺序返回状态名, 无法识别的状态排在最后.
func (s StateSet) Tokens() []string {
	tokens := make([]string, 0, 2+len(s.extra))
	for _, n := range nodeStateNames {
		if s.mask&n.state != 0 {
			tokens = append(tokens, n.name)
		}
	}
	return append(tokens, s.extra...)
}

func (s StateSet) String() string {
	return strings.Join(s.Tokens(), "+")
}

// Severity 返回集合中最严重的状态等级.
func (s StateSet) Severity() Severity {
	switch {
	case s.Any(criticalStates):
		return SeverityCritical
	case s.Any(warningStates):
		return SeverityWarning
	default:
		return SeverityNormal
	}
}

// MarshalJSON 输出为状态名数组.
func (s StateSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Tokens())
}
