package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/petrijr/opsflow/pkg/api"
)

// DecisionHandler evaluates a CEL predicate against the run data and emits
// a condition label. It performs no external calls.
//
// Node config:
//
//	expression   CEL expression over the variable "data" (required)
//	true_label   label for a true result (default "true")
//	false_label  label for a false result (default "false")
//
// An expression that evaluates to a string emits that string as the label.
type DecisionHandler struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

func NewDecisionHandler() *DecisionHandler {
	env, err := cel.NewEnv(
		cel.Variable("data", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		// The environment is static; failure here is a programming error.
		panic(fmt.Sprintf("handlers: build cel env: %v", err))
	}
	return &DecisionHandler{
		env:      env,
		programs: make(map[string]cel.Program),
	}
}

func (h *DecisionHandler) ValidateNode(n api.Node) error {
	expr := configString(n.Config, "expression", "")
	if expr == "" {
		return errors.New("decision node requires an expression")
	}
	_, err := h.program(expr)
	return err
}

func (h *DecisionHandler) Handle(ctx context.Context, req api.Request) (api.Result, error) {
	expr := configString(req.Node.Config, "expression", "")
	if expr == "" {
		return api.Result{}, errors.New("decision node requires an expression")
	}

	prg, err := h.program(expr)
	if err != nil {
		return api.Result{}, err
	}

	out, _, err := prg.ContextEval(ctx, map[string]any{"data": req.Data})
	if err != nil {
		return api.Result{}, fmt.Errorf("evaluate %q: %w", expr, err)
	}

	switch v := out.Value().(type) {
	case bool:
		label := configString(req.Node.Config, "false_label", "false")
		if v {
			label = configString(req.Node.Config, "true_label", "true")
		}
		return api.Result{Condition: label}, nil
	case string:
		return api.Result{Condition: v}, nil
	default:
		return api.Result{}, fmt.Errorf("expression %q returned %T, want bool or string", expr, v)
	}
}

func (h *DecisionHandler) program(expr string) (cel.Program, error) {
	h.mu.RLock()
	prg, ok := h.programs[expr]
	h.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, iss := h.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, iss.Err())
	}
	prg, err := h.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}

	h.mu.Lock()
	h.programs[expr] = prg
	h.mu.Unlock()
	return prg, nil
}
