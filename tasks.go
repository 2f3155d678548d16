package backtrace

import (
	"fmt"
	"sync"

	"golang.org/x/exp/slices"
)

// TaskSet tracks named, in-flight operations so that a fault report can show
// what the process was doing when it crashed. Registering a TaskSet with a
// [Watcher] makes every fault report include a snapshot of it.
//
// Enter may be called multiple times with the same name, in which case
// multiple instances of that task are counted.
type TaskSet struct {
	mu    sync.Mutex
	tasks map[string]uint
}

// TaskInfo describes the set of running tasks sharing a name. Count is never
// zero when returned by [TaskSet.Snapshot].
type TaskInfo struct {
	Name  string `json:"name"`
	Count uint   `json:"count"`
}

// NewTaskSet creates an empty TaskSet.
func NewTaskSet() *TaskSet {
	return &TaskSet{tasks: make(map[string]uint)}
}

// Enter records the start of a task with the name.
func (s *TaskSet) Enter(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[name] += 1
}

// Exit records the completion of a task with the name.
//
// Exit will panic if there aren't any remaining tasks with the name.
func (s *TaskSet) Exit(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.tasks[name]
	if c == 0 {
		panic(fmt.Sprintf("zero running tasks with name %q", name))
	}

	if c == 1 {
		delete(s.tasks, name)
	} else {
		s.tasks[name] = c - 1
	}
}

// Snapshot returns the in-flight tasks, sorted by name.
//
// If tasks are entered or exited during the call, the returned slice reflects
// some state between the start and end of the call.
func (s *TaskSet) Snapshot() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	var infos []TaskInfo
	for name, count := range s.tasks {
		infos = append(infos, TaskInfo{Name: name, Count: count})
	}
	slices.SortFunc(infos, func(a, b TaskInfo) bool { return a.Name < b.Name })
	return infos
}
