// Package policy gates game purchases with an OPA rego policy.
package policy

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/open-policy-agent/opa/rego"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// PurchaseInput is the document a purchase policy is evaluated against.
type PurchaseInput struct {
	UserID         int64  `json:"user_id"`
	ProductID      int64  `json:"product_id"`
	PackageType    string `json:"package_type"`
	ProductPrice   int64  `json:"product_price"`
	PackagePrice   int64  `json:"package_price"`
	ActiveSessions int    `json:"active_sessions"`
}

// Decision is the policy result. Reasons lists every deny rule that fired, sorted.
type Decision struct {
	Allowed bool
	Reasons []string
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.purchase_policy.result"),
		rego.Module("purchase_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// NewEngineFromFile loads the policy from path, or uses DefaultPolicy when path is empty.
func NewEngineFromFile(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return NewEngine(ctx, string(content))
}

// Evaluate checks a purchase against the policy.
func (e *Engine) Evaluate(ctx context.Context, input PurchaseInput) (Decision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{}, fmt.Errorf("policy produced no result")
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, fmt.Errorf("unexpected policy result type %T", results[0].Expressions[0].Value)
	}

	d := Decision{Allowed: obj["decision"] == "allow"}
	if reasons, ok := obj["reasons"].([]interface{}); ok {
		for _, r := range reasons {
			if s, ok := r.(string); ok {
				d.Reasons = append(d.Reasons, s)
			}
		}
	}
	sort.Strings(d.Reasons)
	return d, nil
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package purchase_policy

default decision = "allow"

decision = "block" {
	count(deny) > 0
}

# Products priced under ten units cost nothing to play.
deny["package price is zero for this product"] {
	input.package_price <= 0
}

deny["unknown package type"] {
	not packages[input.package_type]
}

deny["too many active sessions"] {
	input.active_sessions >= 20
}

packages = {"single", "multi"}

result = {"decision": decision, "reasons": deny}
`
