package toolregistry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Summarizer compresses the concatenated capability documents of every
// registered tool into the Condensed Tool Context: the registry
// concatenates every tool's capability text and hands it to the LLM
// client for compression once per process lifetime, caching the result.
// It is satisfied by ollama.Client's Summarize method (llmclient.Client
// itself has no such method); declared here as a narrow interface to
// avoid an import cycle.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Registry dispatches tool calls by name (case-insensitive) and compiles
// the Condensed Tool Context once per process lifetime.
//
// Grounded on pkg/devclaw/copilot/tool_executor.go's ToolExecutor
// registration map, adapted to the init/run/context tool contract.
type Registry struct {
	mu    sync.Mutex
	tools map[string]Tool

	initOnce map[string]*sync.Once
	initErr  map[string]error

	condensed     string
	condensedOnce sync.Once
	condensedErr  error
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		tools:    map[string]Tool{},
		initOnce: map[string]*sync.Once{},
		initErr:  map[string]error{},
	}
}

// Register adds a tool. Init is deferred until first dispatch.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := strings.ToLower(t.Name())
	r.tools[name] = t
	r.initOnce[name] = &sync.Once{}
}

// Names returns every registered tool's canonical name.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		names = append(names, t.Name())
	}
	return names
}

func (r *Registry) lookup(name string) (Tool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tools[strings.ToLower(name)]
	return t, ok
}

// ensureInit lazily runs a tool's Init exactly once, caching any error so
// repeated dispatches to a misconfigured tool fail fast without retrying
// expensive setup.
func (r *Registry) ensureInit(name string, t Tool) error {
	r.mu.Lock()
	once := r.initOnce[strings.ToLower(name)]
	r.mu.Unlock()

	once.Do(func() {
		err := t.Init()
		r.mu.Lock()
		r.initErr[strings.ToLower(name)] = err
		r.mu.Unlock()
	})

	r.mu.Lock()
	err := r.initErr[strings.ToLower(name)]
	r.mu.Unlock()
	return err
}

// Dispatch invokes the named tool with action.Arguments, which the
// orchestrator has already run through NormalizeArgs at the registry
// boundary (see orchestrator/normalize.go's normalizeActions) — or, if
// the tool implements ArgBuilder, lets the tool build its own argument
// map from the whole action instead. It is case-insensitive in the tool
// name.
func (r *Registry) Dispatch(ctx context.Context, action Action) Result {
	t, ok := r.lookup(action.Tool)
	if !ok {
		return Failf("unknown tool %q", action.Tool)
	}
	if err := r.ensureInit(action.Tool, t); err != nil {
		return Failf("tool %q failed to initialize: %w", action.Tool, err)
	}

	args := action.Arguments
	if builder, ok := t.(ArgBuilder); ok {
		built, err := builder.BuildArgs(action)
		if err != nil {
			return Failf("tool %q: building arguments: %w", action.Tool, err)
		}
		args = built
	} else if args == nil {
		args = map[string]any{}
	}

	return safeRun(ctx, t, args)
}

// safeRun recovers a tool panic into a Tool-crash Result: caught,
// recorded as {error, exitCode:1}, and treated like any other tool
// failure by the caller.
func safeRun(ctx context.Context, t Tool, args map[string]any) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Failf("tool %q panicked: %v", t.Name(), p)
		}
	}()
	return t.Run(ctx, args)
}

// CompileCapabilities concatenates every registered tool's Context()
// document, in a stable (name-sorted) order.
func (r *Registry) CompileCapabilities() string {
	r.mu.Lock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	r.mu.Unlock()

	sort.Strings(names)

	var sb strings.Builder
	for _, n := range names {
		t, _ := r.lookup(n)
		sb.WriteString("## ")
		sb.WriteString(t.Name())
		sb.WriteString("\n")
		sb.WriteString(t.Context())
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// CondensedContext returns the cached, once-compressed tool context for
// this process's lifetime. The first caller pays the summarization cost;
// subsequent callers get the cached string.
func (r *Registry) CondensedContext(ctx context.Context, summarizer Summarizer) (string, error) {
	r.condensedOnce.Do(func() {
		raw := r.CompileCapabilities()
		if summarizer == nil {
			r.condensed = raw
			return
		}
		condensed, err := summarizer.Summarize(ctx, raw)
		if err != nil {
			r.condensedErr = fmt.Errorf("compressing tool context: %w", err)
			r.condensed = raw // fall back to the raw, uncompressed text rather than losing tool awareness.
			return
		}
		r.condensed = condensed
	})
	return r.condensed, r.condensedErr
}
