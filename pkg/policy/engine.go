package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage"
	"github.com/open-policy-agent/opa/storage/inmem"
	"github.com/rs/zerolog"

	"github.com/redhawk/appfactory/pkg/deploy"
)

// Engine evaluates OPA/Rego guard-rail policies against a deployment plan
// or a single component before the Deploy Transaction commits to placing
// it, the pre-flight gate deploy.Transaction consults as an optional
// collaborator.
type Engine struct {
	mu           sync.RWMutex
	policies     map[string]*compiledPolicy
	store        storage.Store
	logger       zerolog.Logger
	compiler     *ast.Compiler
	builtinPolicies []Policy
}

// compiledPolicy represents a compiled Rego policy.
type compiledPolicy struct {
	policy   *Policy
	module   *ast.Module
	query    rego.PreparedEvalQuery
	compiled time.Time
}

// NewEngine creates a new policy engine.
func NewEngine(logger zerolog.Logger) (*Engine, error) {
	store := inmem.New()

	e := &Engine{
		policies:     make(map[string]*compiledPolicy),
		store:        store,
		logger:       logger.With().Str("component", "policy-engine").Logger(),
		builtinPolicies: GetBuiltinPolicies(),
	}

	// Load built-in policies
	if err := e.loadBuiltinPolicies(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load built-in policies: %w", err)
	}

	return e, nil
}

// EvaluatePlan evaluates every enabled policy against plan, in the
// pre-flight gate position: after preflightAndPlan parses the assembly
// descriptor, before placement allocates anything.
func (e *Engine) EvaluatePlan(ctx context.Context, plan *deploy.DeploymentPlan, pctx *PolicyContext) (*PolicyResult, error) {
	startTime := time.Now()
	e.mu.RLock()
	defer e.mu.RUnlock()

	var allViolations []PolicyViolation
	var warnings []PolicyViolation
	evaluatedPolicies := make([]string, 0, len(e.policies))

	if pctx == nil {
		pctx = &PolicyContext{}
	}
	pctx.Timestamp = time.Now()
	if pctx.Operation == "" {
		pctx.Operation = "plan"
	}

	for _, cp := range e.policies {
		if !cp.policy.Enabled {
			continue
		}
		evaluatedPolicies = append(evaluatedPolicies, cp.policy.Name)

		input := &PolicyInput{Plan: plan, Context: pctx}
		violations, err := e.evaluatePolicy(ctx, cp, input)
		if err != nil {
			e.logger.Error().Err(err).
				Str("policy", cp.policy.Name).
				Str("app_id", plan.AppID).
				Msg("policy evaluation failed")
			warnings = append(warnings, PolicyViolation{
				Policy:      cp.policy.Name,
				Message:     fmt.Sprintf("policy %s evaluation failed: %v", cp.policy.Name, err),
				Severity:    SeverityWarning,
				DetectedAt:  time.Now(),
			})
			continue
		}
		allViolations = append(allViolations, violations...)
	}

	allowed := allowedGiven(allViolations)

	duration := time.Since(startTime)
	e.logger.Debug().
		Str("app_id", plan.AppID).
		Int("violations", len(allViolations)).
		Dur("duration", duration).
		Msg("plan policy evaluation completed")

	return &PolicyResult{
		Allowed:           allowed,
		Violations:        allViolations,
		Warnings:          warnings,
		EvaluatedAt:       time.Now(),
		EvaluatedPolicies: evaluatedPolicies,
		Duration:          duration,
		Context:           pctx,
	}, nil
}

// EvaluateComponent evaluates every enabled policy against one
// component. Nothing in pkg/deploy calls it; the transaction's policy
// gate evaluates the whole plan through EvaluatePlan.
func (e *Engine) EvaluateComponent(ctx context.Context, component *deploy.ComponentSpec, pctx *PolicyContext) (*PolicyResult, error) {
	startTime := time.Now()
	e.mu.RLock()
	defer e.mu.RUnlock()

	var allViolations []PolicyViolation
	var warnings []PolicyViolation
	evaluatedPolicies := make([]string, 0, len(e.policies))

	if pctx == nil {
		pctx = &PolicyContext{}
	}
	pctx.Timestamp = time.Now()
	if pctx.Operation == "" {
		pctx.Operation = "place"
	}

	for _, cp := range e.policies {
		if !cp.policy.Enabled {
			continue
		}
		evaluatedPolicies = append(evaluatedPolicies, cp.policy.Name)

		input := &PolicyInput{Component: component, Context: pctx}
		violations, err := e.evaluatePolicy(ctx, cp, input)
		if err != nil {
			e.logger.Error().Err(err).
				Str("policy", cp.policy.Name).
				Str("component", component.InstanceID).
				Msg("policy evaluation failed")
			warnings = append(warnings, PolicyViolation{
				Policy:     cp.policy.Name,
				Message:    fmt.Sprintf("policy %s evaluation failed: %v", cp.policy.Name, err),
				Severity:   SeverityWarning,
				DetectedAt: time.Now(),
			})
			continue
		}
		allViolations = append(allViolations, violations...)
	}

	allowed := allowedGiven(allViolations)

	duration := time.Since(startTime)
	e.logger.Debug().
		Str("component", component.InstanceID).
		Int("violations", len(allViolations)).
		Dur("duration", duration).
		Msg("component policy evaluation completed")

	return &PolicyResult{
		Allowed:           allowed,
		Violations:        allViolations,
		Warnings:          warnings,
		EvaluatedAt:       time.Now(),
		EvaluatedPolicies: evaluatedPolicies,
		Duration:          duration,
		Context:           pctx,
	}, nil
}

func allowedGiven(violations []PolicyViolation) bool {
	for _, v := range violations {
		if v.Severity == SeverityError || v.Severity == SeverityCritical {
			return false
		}
	}
	return true
}

// TransactionGate adapts Engine to deploy.PolicyGate, the narrow
// interface the Deploy Transaction's pre-flight step calls through so
// pkg/deploy never imports pkg/policy's richer types.
type TransactionGate struct {
	engine *Engine
	ctxFn  func(ctx context.Context) *PolicyContext
}

// NewTransactionGate wraps engine as a deploy.PolicyGate. ctxFn, if
// non-nil, derives a PolicyContext (environment, maintenance window, user)
// from the ambient request context for each evaluation; a nil ctxFn
// evaluates with an empty context.
func NewTransactionGate(engine *Engine, ctxFn func(ctx context.Context) *PolicyContext) *TransactionGate {
	return &TransactionGate{engine: engine, ctxFn: ctxFn}
}

// EvaluatePlan implements deploy.PolicyGate.
func (g *TransactionGate) EvaluatePlan(ctx context.Context, plan *deploy.DeploymentPlan) (bool, []string, error) {
	var pctx *PolicyContext
	if g.ctxFn != nil {
		pctx = g.ctxFn(ctx)
	}

	result, err := g.engine.EvaluatePlan(ctx, plan, pctx)
	if err != nil {
		return false, nil, err
	}

	reasons := make([]string, 0, len(result.Violations))
	for _, v := range result.Violations {
		reasons = append(reasons, fmt.Sprintf("[%s] %s: %s", v.Severity, v.Policy, v.Message))
	}
	return result.Allowed, reasons, nil
}

// LoadPolicies loads policy files.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	loader := NewLoader(e.logger)
	policies, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	// Compile and store policies
	for i := range policies {
		if err := e.compileAndStorePolicy(ctx, &policies[i]); err != nil {
			e.logger.Error().Err(err).
				Str("policy", policies[i].Name).
				Msg("Failed to compile policy")
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}

	e.logger.Info().
		Int("count", len(policies)).
		Msg("Policies loaded successfully")

	return nil
}

// evaluatePolicy evaluates a single compiled policy.
func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, input *PolicyInput) ([]PolicyViolation, error) {
	// Build the query to get all deny violations from the policy package
	// Extract package name from the policy
	packageName := extractPackageName(cp.policy.Rego)

	// Create a query specifically for deny results
	query := fmt.Sprintf("data.%s.deny", packageName)

	r := rego.New(
		rego.Module(cp.policy.Name, cp.policy.Rego),
		rego.Query(query),
		rego.Input(input),
	)

	results, err := r.Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []PolicyViolation

	// Process results
	for _, result := range results {
		if len(result.Expressions) > 0 {
			// The result should be a set of violations
			if denySet, ok := result.Expressions[0].Value.([]interface{}); ok {
				for _, d := range denySet {
					violation := e.createViolation(cp.policy, d, input)
					violations = append(violations, violation)
				}
			}
		}
	}

	return violations, nil
}

// extractPackageName extracts the package name from Rego code.
func extractPackageName(rego string) string {
	lines := strings.Split(rego, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				return parts[1]
			}
		}
	}
	return "appfactory.policies"
}

// createViolation creates a PolicyViolation from policy result.
func (e *Engine) createViolation(policy *Policy, result interface{}, input *PolicyInput) PolicyViolation {
	violation := PolicyViolation{
		Policy:     policy.Name,
		Severity:   policy.Severity,
		DetectedAt: time.Now(),
	}

	if input.Component != nil {
		violation.Resource = input.Component.InstanceID
	} else if input.Plan != nil {
		violation.Resource = input.Plan.AppID
	}

	// Extract message from result
	switch v := result.(type) {
	case string:
		violation.Message = v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			violation.Message = msg
		}
		if sev, ok := v["severity"].(string); ok {
			violation.Severity = Severity(sev)
		}
		if res, ok := v["resource"].(string); ok {
			violation.Resource = res
		}
	default:
		violation.Message = fmt.Sprintf("%v", result)
	}

	return violation
}

// compileAndStorePolicy compiles a policy and stores it.
func (e *Engine) compileAndStorePolicy(ctx context.Context, policy *Policy) error {
	// Parse the Rego module
	module, err := ast.ParseModule(policy.Name, policy.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy: %w", err)
	}

	// Create a new Rego query
	r := rego.New(
		rego.Module(policy.Name, policy.Rego),
		rego.Store(e.store),
		rego.Query("data"),
	)

	// Prepare the query for reuse
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare query: %w", err)
	}

	e.policies[policy.Name] = &compiledPolicy{
		policy:   policy,
		module:   module,
		query:    query,
		compiled: time.Now(),
	}

	e.logger.Debug().
		Str("policy", policy.Name).
		Msg("Policy compiled successfully")

	return nil
}

// loadBuiltinPolicies loads the built-in policies.
func (e *Engine) loadBuiltinPolicies(ctx context.Context) error {
	for i := range e.builtinPolicies {
		if err := e.compileAndStorePolicy(ctx, &e.builtinPolicies[i]); err != nil {
			return fmt.Errorf("failed to compile built-in policy %s: %w", e.builtinPolicies[i].Name, err)
		}
	}

	e.logger.Info().
		Int("count", len(e.builtinPolicies)).
		Msg("Built-in policies loaded")

	return nil
}

// GetPolicy returns a policy by name.
func (e *Engine) GetPolicy(name string) (*Policy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cp, exists := e.policies[name]
	if !exists {
		return nil, fmt.Errorf("policy not found: %s", name)
	}

	return cp.policy, nil
}

// ListPolicies returns all loaded policies.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]Policy, 0, len(e.policies))
	for _, cp := range e.policies {
		policies = append(policies, *cp.policy)
	}

	return policies
}

// ReloadPolicies reloads all policies.
func (e *Engine) ReloadPolicies(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Clear existing policies
	e.policies = make(map[string]*compiledPolicy)

	// Reload built-in policies
	return e.loadBuiltinPolicies(ctx)
}

// EnablePolicy enables a policy by name.
func (e *Engine) EnablePolicy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, exists := e.policies[name]
	if !exists {
		return fmt.Errorf("policy not found: %s", name)
	}

	cp.policy.Enabled = true
	e.logger.Info().Str("policy", name).Msg("Policy enabled")

	return nil
}

// DisablePolicy disables a policy by name.
func (e *Engine) DisablePolicy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, exists := e.policies[name]
	if !exists {
		return fmt.Errorf("policy not found: %s", name)
	}

	cp.policy.Enabled = false
	e.logger.Info().Str("policy", name).Msg("Policy disabled")

	return nil
}
