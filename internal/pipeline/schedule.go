package pipeline

import (
	"github.com/Iron-Ham/mailcd/internal/errors"
)

// Dependency records that Stage consumes a StorageID published by DependsOn.
type Dependency struct {
	Stage     string
	DependsOn string
	StorageID string
}

// Dependencies derives the stage graph: a stage depends on every other stage
// whose outbox publishes a StorageID its inbox reads. A stage reading its own
// outbox consumes a package from an earlier run and gets no edge.
func Dependencies(stages []Stage) []Dependency {
	producers := make(map[string][]int)
	for i, stage := range stages {
		for _, id := range stage.Outbox.StorageIDs() {
			producers[id] = append(producers[id], i)
		}
	}

	var deps []Dependency
	for i, stage := range stages {
		seen := make(map[int]bool)
		for _, id := range stage.Inbox.StorageIDs() {
			for _, p := range producers[id] {
				if p == i || seen[p] {
					continue
				}
				seen[p] = true
				deps = append(deps, Dependency{
					Stage:     stage.Name,
					DependsOn: stages[p].Name,
					StorageID: id,
				})
			}
		}
	}
	return deps
}

// BuildOrder returns the stage names with every producer ahead of its
// consumers. Among stages that are ready at the same time, definition order
// wins. Each stage appears exactly once. If dependencies are cyclic a
// *errors.CycleError lists the stages that could not be scheduled.
func BuildOrder(stages []Stage) ([]string, error) {
	index := make(map[string]int, len(stages))
	for i, stage := range stages {
		index[stage.Name] = i
	}

	inDegree := make([]int, len(stages))
	dependents := make([][]int, len(stages))
	for _, dep := range Dependencies(stages) {
		consumer, producer := index[dep.Stage], index[dep.DependsOn]
		inDegree[consumer]++
		dependents[producer] = append(dependents[producer], consumer)
	}

	order := make([]string, 0, len(stages))
	done := make([]bool, len(stages))
	for len(order) < len(stages) {
		next := -1
		for i := range stages {
			if !done[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			break
		}

		done[next] = true
		order = append(order, stages[next].Name)
		for _, d := range dependents[next] {
			inDegree[d]--
		}
	}

	if len(order) < len(stages) {
		var remaining []string
		for i, stage := range stages {
			if !done[i] {
				remaining = append(remaining, stage.Name)
			}
		}
		return nil, errors.NewCycleError(remaining)
	}
	return order, nil
}

// Ordered returns the pipeline's stages in BuildOrder.
func (p *Pipeline) Ordered() ([]*Stage, error) {
	names, err := BuildOrder(p.Stages)
	if err != nil {
		return nil, err
	}
	ordered := make([]*Stage, 0, len(names))
	for _, name := range names {
		stage, _ := p.Stage(name)
		ordered = append(ordered, stage)
	}
	return ordered, nil
}
