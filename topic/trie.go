package topic

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type node struct {
	path   string // 路由过滤器的部分
	filter string // 以此节点结尾的完整过滤器, 为空表示不是终点
	next   map[string]*node
}

func newNode(path string) *node {
	return &node{path: path, next: make(map[string]*node)}
}

func (n *node) print(sb *strings.Builder, m int) {
	for _, path := range n.paths() {
		next := n.next[path]
		fmt.Fprintf(sb, "%spath=%s, filter=%q\n", strings.Repeat("\t", m), next.path, next.filter)
		next.print(sb, m+1)
	}
}

func (n *node) paths() []string {
	v := make([]string, 0, len(n.next))
	for k := range n.next {
		v = append(v, k)
	}
	sort.Strings(v)
	return v
}

// match 收集所有匹配剩余层级 levels 的过滤器. dollar 为 true 时第一层不匹配通配符 [MQTT-4.7.2-1].
func (n *node) match(levels []string, dollar bool, found map[string]struct{}) {
	if !dollar {
		// "#" 同时匹配父级本身, 例如 "a/#" 匹配 "a"
		if next, ok := n.next["#"]; ok && next.filter != "" {
			found[next.filter] = struct{}{}
		}
	}
	if len(levels) == 0 {
		if n.filter != "" {
			found[n.filter] = struct{}{}
		}
		return
	}
	if next, ok := n.next[levels[0]]; ok {
		next.match(levels[1:], false, found)
	}
	if next, ok := n.next["+"]; ok && !dollar {
		next.match(levels[1:], false, found)
	}
}

// MemoryTrie 主题过滤树, 用于找出一个主题名匹配的全部主题过滤器. 并发安全.
type MemoryTrie struct {
	mu   sync.RWMutex
	root *node
}

func NewMemoryTrie() *MemoryTrie {
	return &MemoryTrie{
		root: newNode(""),
	}
}

func (m *MemoryTrie) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sb strings.Builder
	m.root.print(&sb, 0)
	return sb.String()
}

// Subscribe 订阅, 添加一个主题过滤器
func (m *MemoryTrie) Subscribe(filter string) error {
	if err := ValidateFilter(filter); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.root
	for _, subPath := range strings.Split(filter, "/") {
		if _, ok := current.next[subPath]; !ok {
			current.next[subPath] = newNode(subPath)
		}
		current = current.next[subPath]
	}
	current.filter = filter
	return nil
}

// Unsubscribe 删除一个主题过滤器, 并回收不再使用的节点. 不是订阅过的过滤器时什么也不做.
func (m *MemoryTrie) Unsubscribe(filter string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := strings.Split(filter, "/")
	trail := []*node{m.root}
	current := m.root
	for _, subPath := range paths {
		next, ok := current.next[subPath]
		if !ok {
			return
		}
		trail = append(trail, next)
		current = next
	}
	if current.filter != filter {
		return
	}
	current.filter = ""
	for i := len(paths) - 1; i >= 0; i-- {
		child := trail[i+1]
		if child.filter != "" || len(child.next) != 0 {
			break
		}
		delete(trail[i].next, paths[i])
	}
}

// Find 返回匹配主题名的全部过滤器, 按字典序排列
func (m *MemoryTrie) Find(topicName string) ([]string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	found := make(map[string]struct{})
	m.root.match(strings.Split(topicName, "/"), strings.HasPrefix(topicName, "$"), found)
	if len(found) == 0 {
		return nil, false
	}
	subs := make([]string, 0, len(found))
	for filter := range found {
		subs = append(subs, filter)
	}
	sort.Strings(subs)
	return subs, true
}
