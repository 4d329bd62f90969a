package modules

import (
	"context"
	"fmt"
	"strings"
	"time"

	"attackgraph/internal/executor"
	"attackgraph/internal/normalize"
	"attackgraph/pkg/models"
)

// command is the argv and extra environment of one tool invocation.
type command struct {
	argv []string
	env  []string
}

// toolModule is the shared runner behind every built-in module.
type toolModule struct {
	name    string
	tool    string
	proto   string
	auth    []models.AuthMethod
	timeout time.Duration
	parse   normalize.Func
	// build returns the command for a run writing into dir.
	build func(s models.Session, t models.Target, dir string) command
	// input selects what the parser reads.
	input func(t models.Target, dir string, out executor.Outcome) normalize.Input
	// extra lists tool-produced files beyond the module directory.
	extra func(dir string) []string
	env   Env
}

func (m *toolModule) Name() string                       { return m.name }
func (m *toolModule) Proto() string                      { return m.proto }
func (m *toolModule) SupportedAuth() []models.AuthMethod { return m.auth }

func (m *toolModule) Run(ctx context.Context, session models.Session, target models.Target) models.ModuleResult {
	res := models.ModuleResult{
		RunID:     m.env.NewID(),
		Module:    m.name,
		Tool:      m.tool,
		Target:    target.Host,
		StartedAt: m.env.Now(),
		Artifacts: []string{},
		Nodes:     []models.Node{},
		Edges:     []models.Edge{},
	}

	if err := session.Validate(); err != nil {
		return m.fail(res, err)
	}
	if method := session.AuthMethod(); !Supports(m, method) {
		return m.fail(res, fmt.Errorf("%w: %s by %s", ErrUnsupportedAuth, method, m.name))
	}
	if strings.TrimSpace(target.Host) == "" {
		return m.fail(res, fmt.Errorf("target host is required"))
	}

	dir, err := m.env.Artifacts.Dir(target.Host, m.name)
	if err != nil {
		return m.fail(res, err)
	}
	cmd := m.build(session, target, dir)
	out := m.env.Runner.Run(ctx, executor.Invocation{
		Module:  m.name,
		Tool:    m.tool,
		Argv:    cmd.argv,
		Target:  target.Host,
		Timeout: m.env.timeout(m.name, m.timeout),
		Env:     cmd.env,
	})

	res.ExitCode = out.ExitCode
	res.TimedOut = out.TimedOut
	res.Status = Classify(out)
	stderr := out.Stderr
	switch {
	case out.TimedOut:
		res.Error = "timeout"
		stderr = []byte("timeout")
	case out.Err != nil:
		res.Error = out.Err.Error()
	}

	stdoutPath, stderrPath, err := m.env.Artifacts.Save(target.Host, m.name, out.Stdout, stderr)
	if err != nil && res.Error == "" {
		res.Error = err.Error()
	}
	res.StdoutPath = stdoutPath
	res.StderrPath = stderrPath
	res.Artifacts = append(res.Artifacts, dir)
	if m.extra != nil {
		res.Artifacts = append(res.Artifacts, m.extra(dir)...)
	}

	if !out.TimedOut {
		b := m.parse(m.input(target, dir, out))
		res.Nodes = append(res.Nodes, b.Nodes...)
		res.Edges = append(res.Edges, b.Edges...)
	}
	res.EndedAt = m.env.Now()
	return res
}

func (m *toolModule) fail(res models.ModuleResult, err error) models.ModuleResult {
	res.Status = models.StatusToolError
	res.ExitCode = -1
	res.Error = err.Error()
	res.EndedAt = m.env.Now()
	return res
}

func stdoutInput(t models.Target, dir string, out executor.Outcome) normalize.Input {
	return normalize.Input{Target: t.Host, Stdout: out.Stdout, Dir: dir}
}
