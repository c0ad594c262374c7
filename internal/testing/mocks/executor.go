// Package mocks provides shared test doubles for runtests packages.
package mocks

import (
	"context"
	"sync"

	"github.com/seven-liu-jie/roslyn/internal/testrun"
)

// Executor implements executor.Executor for testing.
type Executor struct {
	// RunFunc is called by Run. If nil, Run returns a succeeded result.
	RunFunc func(ctx context.Context, assembly testrun.AssemblyInfo) (testrun.TestResult, error)

	// CommandLineFunc is called by CommandLine. If nil, a canned command
	// line derived from the assembly name is returned.
	CommandLineFunc func(assembly testrun.AssemblyInfo) string

	// Concurrency and call tracking (thread-safe).
	mu         sync.Mutex
	running    int
	maxRunning int
	calls      []string
}

// Run tracks concurrency and delegates to RunFunc.
func (m *Executor) Run(ctx context.Context, assembly testrun.AssemblyInfo) (testrun.TestResult, error) {
	m.mu.Lock()
	m.running++
	if m.running > m.maxRunning {
		m.maxRunning = m.running
	}
	m.calls = append(m.calls, assembly.Name())
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running--
		m.mu.Unlock()
	}()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, assembly)
	}
	return testrun.TestResult{AssemblyName: assembly.Name(), Succeeded: true}, nil
}

// CommandLine delegates to CommandLineFunc.
func (m *Executor) CommandLine(assembly testrun.AssemblyInfo) string {
	if m.CommandLineFunc != nil {
		return m.CommandLineFunc(assembly)
	}
	return "run " + assembly.Name()
}

// MaxRunning returns the highest number of concurrent Run calls observed.
func (m *Executor) MaxRunning() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxRunning
}

// Calls returns the assembly names passed to Run, in dispatch order.
func (m *Executor) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// CallCount returns the number of Run invocations.
func (m *Executor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
