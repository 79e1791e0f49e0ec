package integration

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/spanz"
)

// MockCollector wraps a real collector with test utilities.
// Provides synchronous collection and verification helpers.
//
//nolint:govet // Field alignment optimized for test helper readability
type MockCollector struct {
	exported []spanz.Record
	*spanz.Collector
	t  *testing.T
	mu sync.Mutex
}

// NewMockCollector creates a synchronous collector for testing.
func NewMockCollector(t *testing.T, name string) *MockCollector {
	t.Helper()
	collector := spanz.NewSyncCollector(name)
	t.Cleanup(collector.Close)
	return &MockCollector{
		Collector: collector,
		t:         t,
	}
}

// Export returns collected records and clears the buffer.
func (m *MockCollector) Export() []spanz.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := m.Collector.Export()
	m.exported = append(m.exported, records...)
	return records
}

// GetAll returns every record exported so far, including the current buffer.
func (m *MockCollector) GetAll() []spanz.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current := m.Collector.Export(); len(current) > 0 {
		m.exported = append(m.exported, current...)
	}
	all := make([]spanz.Record, len(m.exported))
	copy(all, m.exported)
	return all
}

// AssertRecordCount verifies the exact number of buffered records.
func (m *MockCollector) AssertRecordCount(expected int) []spanz.Record {
	m.t.Helper()
	records := m.Export()
	if len(records) != expected {
		m.t.Errorf("Expected %d records, got %d", expected, len(records))
	}
	return records
}

// AssertRecordNamed checks that a record with the given name exists.
func (m *MockCollector) AssertRecordNamed(name string) *spanz.Record {
	m.t.Helper()
	records := m.GetAll()
	for i := range records {
		if records[i].Name == name {
			return &records[i]
		}
	}
	m.t.Errorf("Record named '%s' not found", name)
	return nil
}

// AssertParentChild verifies a parent-child relationship between two named records.
func (m *MockCollector) AssertParentChild(parentName, childName string) {
	m.t.Helper()
	records := m.GetAll()
	var parent, child *spanz.Record

	for i := range records {
		if records[i].Name == parentName {
			parent = &records[i]
		}
		if records[i].Name == childName {
			child = &records[i]
		}
	}

	if parent == nil {
		m.t.Errorf("Parent record '%s' not found", parentName)
		return
	}
	if child == nil {
		m.t.Errorf("Child record '%s' not found", childName)
		return
	}

	if child.ParentID != parent.ID {
		m.t.Errorf("Parent-child relationship broken: %s is not parent of %s. Child ParentID=%s, Parent ID=%s",
			parentName, childName, child.ParentID, parent.ID)
	}
	if child.TraceID != parent.TraceID {
		m.t.Errorf("Trace ID mismatch: parent=%s, child=%s", parent.TraceID, child.TraceID)
	}
}

// RecordTree is a hierarchical view of records.
type RecordTree struct {
	Record   spanz.Record
	Children []*RecordTree
}

// BuildRecordTree constructs trees from a flat record list. A record whose
// parent is not in the list starts a tree of its own, so broken linkage shows
// up as extra roots.
func BuildRecordTree(records []spanz.Record) []*RecordTree {
	nodes := make(map[string]*RecordTree, len(records))
	for i := range records {
		nodes[records[i].ID] = &RecordTree{Record: records[i]}
	}

	roots := make([]*RecordTree, 0)
	for i := range records {
		rec := records[i]
		node := nodes[rec.ID]
		if parent, ok := nodes[rec.ParentID]; ok && rec.HasParent() {
			parent.Children = append(parent.Children, node)
		} else {
			roots = append(roots, node)
		}
	}
	return roots
}

// PrintRecordTree formats trees for debugging.
func PrintRecordTree(trees []*RecordTree) string {
	var sb strings.Builder
	for _, tree := range trees {
		printTreeNode(&sb, tree, 0)
	}
	return sb.String()
}

func printTreeNode(sb *strings.Builder, node *RecordTree, depth int) {
	indent := strings.Repeat("  ", depth)
	d := time.Duration(node.Record.Duration) * time.Microsecond
	fmt.Fprintf(sb, "%s%s (%.2fms)\n", indent, node.Record.Name, d.Seconds()*1000)
	for _, child := range node.Children {
		printTreeNode(sb, child, depth+1)
	}
}

// RecordMatcher provides fluent assertions for records.
type RecordMatcher struct {
	t   *testing.T
	rec *spanz.Record
}

// NewRecordMatcher creates a matcher for record assertions.
func NewRecordMatcher(t *testing.T, rec *spanz.Record) *RecordMatcher {
	return &RecordMatcher{t: t, rec: rec}
}

// HasTag verifies a tag exists with value.
func (m *RecordMatcher) HasTag(key spanz.Tag, value string) *RecordMatcher {
	m.t.Helper()
	if m.rec == nil {
		return m
	}
	if actual, exists := m.rec.Tags[key]; !exists {
		m.t.Errorf("Record %s missing tag '%s'", m.rec.Name, key)
	} else if actual != value {
		m.t.Errorf("Record %s tag '%s': expected '%s', got '%s'",
			m.rec.Name, key, value, actual)
	}
	return m
}

// HasNoTag verifies a tag is absent.
func (m *RecordMatcher) HasNoTag(key spanz.Tag) *RecordMatcher {
	m.t.Helper()
	if m.rec == nil {
		return m
	}
	if actual, exists := m.rec.Tags[key]; exists {
		m.t.Errorf("Record %s has unexpected tag '%s'=%q", m.rec.Name, key, actual)
	}
	return m
}

// HasParent verifies the parent id.
func (m *RecordMatcher) HasParent(parentID string) *RecordMatcher {
	m.t.Helper()
	if m.rec == nil {
		return m
	}
	if m.rec.ParentID != parentID {
		m.t.Errorf("Record %s wrong parent: expected %s, got %s",
			m.rec.Name, parentID, m.rec.ParentID)
	}
	return m
}

// DurationBetween verifies the duration is in range.
func (m *RecordMatcher) DurationBetween(minDur, maxDur time.Duration) *RecordMatcher {
	m.t.Helper()
	if m.rec == nil {
		return m
	}
	d := time.Duration(m.rec.Duration) * time.Microsecond
	if d < minDur || d > maxDur {
		m.t.Errorf("Record %s duration %v not in range [%v, %v]",
			m.rec.Name, d, minDur, maxDur)
	}
	return m
}

// Engine drives an agent the way an instrumentation engine does: one slot
// per goroutine, entries started and ended in strict nesting order.
type Engine struct {
	Agent *spanz.Agent
}

// HandleRequest runs a root transaction on slot and calls body with the
// installed context. body's error ends the root with an error. A nested
// call runs body in the outer request's context.
func (e *Engine) HandleRequest(slot *spanz.Slot, name string, body func(tc *spanz.ThreadContext) error) {
	root := e.Agent.StartTransaction("Web", name, spanz.StaticMessage(name), "http request", slot, 0, 0)
	if err := body(slot.Get()); err != nil {
		root.EndWithError(err)
		return
	}
	root.End()
}

// Call wraps fn in a service call entry on tc.
func Call(tc *spanz.ThreadContext, typ, target string, fn func() error) error {
	entry := tc.StartServiceCallEntry(typ, target, spanz.StaticMessage(target), "service call")
	if err := fn(); err != nil {
		entry.EndWithError(err)
		return err
	}
	entry.End()
	return nil
}

// Query wraps fn in a query entry on tc.
func Query(tc *spanz.ThreadContext, queryType, text string, fn func() error) error {
	entry := tc.StartQueryEntry(queryType, text, spanz.StaticQueryMessage("", ""), "query")
	if err := fn(); err != nil {
		entry.EndWithErrorCause("query failed", err)
		return err
	}
	entry.End()
	return nil
}
