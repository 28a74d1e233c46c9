package client

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"sync"

	"github.com/vanderheijden86/nodeview/pkg/model"
)

// Memory is an in-process repository with the same contract as Client.
// It backs --demo mode and the tests of the packages above this one.
type Memory struct {
	mu       sync.Mutex
	nodes    map[string]*memNode
	calls    map[string]int
	failures map[string]error
}

type memNode struct {
	children []string
	props    model.Properties
}

// NewMemory returns a repository that only contains the root node.
func NewMemory() *Memory {
	return &Memory{
		nodes:    map[string]*memNode{model.RootPath: {props: model.Properties{}}},
		calls:    make(map[string]int),
		failures: make(map[string]error),
	}
}

// NewDemo returns a small seeded repository.
func NewDemo() *Memory {
	m := NewMemory()
	m.Seed(model.RootPath, map[string]string{"jcr:primaryType": "nt:unstructured", "access": "alice:view"})
	m.Seed("/oh/content", map[string]string{"jcr:title": "Content"})
	m.Seed("/oh/content/news", map[string]string{"jcr:title": "News", "tags": model.MultipleValues})
	m.Seed("/oh/content/news/2026", nil)
	m.Seed("/oh/content/about", map[string]string{"jcr:title": "About us"})
	m.Seed("/oh/config", map[string]string{"mode": "publish"})
	m.Seed("/oh/config/replication", map[string]string{"enabled": "true"})
	m.Seed("/oh/archive", nil)
	return m
}

// Seed creates path, its missing ancestors, and merges props into it.
func (m *Memory) Seed(path string, props map[string]string) {
	path = model.NormalizePath(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure(path)
	maps.Copy(m.nodes[path].props, props)
}

func (m *Memory) ensure(path string) {
	if _, ok := m.nodes[path]; ok {
		return
	}
	parent := model.ParentPath(path)
	m.ensure(parent)
	m.nodes[path] = &memNode{props: model.Properties{}}
	m.nodes[parent].children = append(m.nodes[parent].children, path)
}

// FailOn makes every later call of the named operation (for example
// "ListChildren") return err. A nil err clears the failure.
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Calls returns how often op was invoked with the given path.
func (m *Memory) Calls(op, path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op+" "+path]
}

// Has reports whether a node exists at path.
func (m *Memory) Has(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.nodes[path]
	return ok
}

func (m *Memory) enter(op, path string) (*memNode, error) {
	m.calls[op+" "+path]++
	if err := m.failures[op]; err != nil {
		return nil, err
	}
	n, ok := m.nodes[path]
	if !ok {
		return nil, &HTTPError{Method: op, Path: path, StatusCode: http.StatusInternalServerError, Body: "PathNotFoundException: " + path}
	}
	return n, nil
}

// Login always succeeds.
func (m *Memory) Login(ctx context.Context) error {
	return nil
}

func (m *Memory) ListChildren(ctx context.Context, path string) ([]model.NodeSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := m.enter("ListChildren", path)
	if err != nil {
		return nil, err
	}
	out := make([]model.NodeSummary, 0, len(n.children))
	for _, child := range n.children {
		out = append(out, model.NodeSummary{
			Name:        model.Base(child),
			Path:        child,
			HasChildren: len(m.nodes[child].children) > 0,
		})
	}
	return out, nil
}

func (m *Memory) GetProperties(ctx context.Context, path string) (model.Properties, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := m.enter("GetProperties", path)
	if err != nil {
		return nil, err
	}
	return maps.Clone(n.props), nil
}

func (m *Memory) CreateNode(ctx context.Context, parentPath, name string) error {
	if err := model.ValidateName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	parent, err := m.enter("CreateNode", parentPath)
	if err != nil {
		return err
	}
	path := model.JoinPath(parentPath, name)
	if _, exists := m.nodes[path]; exists {
		return fmt.Errorf("node %s already exists", path)
	}
	m.nodes[path] = &memNode{props: model.Properties{}}
	parent.children = append(parent.children, path)
	return nil
}

func (m *Memory) DeleteNode(ctx context.Context, path string) error {
	if model.IsRoot(path) {
		return ErrRootNode
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.enter("DeleteNode", path); err != nil {
		return err
	}
	parent := m.nodes[model.ParentPath(path)]
	parent.children = slices.DeleteFunc(parent.children, func(p string) bool { return p == path })
	m.drop(path)
	return nil
}

func (m *Memory) drop(path string) {
	for _, child := range m.nodes[path].children {
		m.drop(child)
	}
	delete(m.nodes, path)
}

func (m *Memory) SetProperty(ctx context.Context, path, name, value string) error {
	if err := model.ValidateName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := m.enter("SetProperty", path)
	if err != nil {
		return err
	}
	n.props[name] = value
	return nil
}

func (m *Memory) DeleteProperty(ctx context.Context, path, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := m.enter("DeleteProperty", path)
	if err != nil {
		return err
	}
	delete(n.props, name)
	return nil
}
