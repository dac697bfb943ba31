// Package system composes process applications into pipelines (spec.md
// §4.8): a declarative graph built from "A | B | C" expressions, three
// runner variants (single-threaded, multi-threaded, multi-process), and
// pluggable prompt transports (system/prompt/nats, system/prompt/walprompt).
package system

import (
	"context"
	"fmt"

	"github.com/arc-self/eventcore/process"
)

// ProcessClass is a named, pipeline-parameterized process application
// factory. New is called each time System.Application builds an instance
// for a pipeline_id.
type ProcessClass struct {
	Name string
	New  func(pipelineID int) *process.Application
}

// System holds a process-class registry and the pipeline graph built from
// a set of "A | B | C" expressions.
type System struct {
	Graph   *Graph
	classes map[string]ProcessClass
}

// New validates that every class named in pipelineExprs is registered in
// classes and returns a System ready to hand to a runner.
func New(classes []ProcessClass, pipelineExprs []string) (*System, error) {
	graph, err := BuildGraph(pipelineExprs)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]ProcessClass, len(classes))
	for _, c := range classes {
		if _, dup := byName[c.Name]; dup {
			return nil, fmt.Errorf("system: duplicate process class %q", c.Name)
		}
		byName[c.Name] = c
	}
	for _, name := range graph.Classes {
		if _, ok := byName[name]; !ok {
			return nil, fmt.Errorf("system: pipeline expression references unregistered process class %q", name)
		}
	}

	return &System{Graph: graph, classes: byName}, nil
}

// Application returns the process.Application instance for class on
// pipelineID, constructing it fresh via the class's factory on every call.
// SingleThreadedRunner.Step calls it (through instances) on every Step.
func (s *System) Application(class string, pipelineID int) (*process.Application, error) {
	c, ok := s.classes[class]
	if !ok {
		return nil, fmt.Errorf("system: unknown process class %q", class)
	}
	return c.New(pipelineID), nil
}

// instances builds one Application per registered class for pipelineID,
// keyed by class name, in Graph.Classes order.
func (s *System) instances(pipelineID int) ([]string, map[string]*process.Application, error) {
	apps := make(map[string]*process.Application, len(s.Graph.Classes))
	for _, name := range s.Graph.Classes {
		app, err := s.Application(name, pipelineID)
		if err != nil {
			return nil, nil, err
		}
		apps[name] = app
	}
	return s.Graph.Classes, apps, nil
}

// DefaultBatchSize bounds how many upstream notifications a runner pulls
// per ProcessBatch call.
const DefaultBatchSize = 100

// ctxDone is a small helper shared by the runners to check for
// cancellation between steps of a busy loop.
func ctxDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
