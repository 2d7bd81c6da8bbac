// Package patch moves the scan flow's Catch_Scope out of Try_Scope and adds
// the Catch_Scope and Finally_Scope actions at the top level.
//
// The edits are expressed as an RFC 6902 JSON Patch and applied to the raw
// document, so members the patch does not touch are carried through as-is.
package patch

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/devicelab-dev/flowpatch/pkg/flow"
	"github.com/devicelab-dev/flowpatch/pkg/logger"
)

// Operation is a single JSON Patch operation.
type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// Plan is the set of edits computed for one document.
type Plan struct {
	Operations []Operation
	// RemovesNested is true when Try_Scope still holds a Catch_Scope.
	RemovesNested bool
}

// NewPlan inspects doc and returns the edits it needs. The document must
// contain properties.definition.actions.Try_Scope.actions.
func NewPlan(doc *flow.Document) (*Plan, error) {
	nested, err := doc.Lookup(actionsPath(TryScope, "actions")...)
	if err != nil {
		return nil, err
	}

	plan := &Plan{}
	if _, ok := nested[CatchScope]; ok {
		logger.Debug("%s holds a nested %s", TryScope, CatchScope)
		plan.RemovesNested = true
		plan.Operations = append(plan.Operations, Operation{
			Op:   "remove",
			Path: flow.Pointer(actionsPath(TryScope, "actions", CatchScope)...),
		})
	}

	// add replaces an existing member, so re-running overwrites both scopes.
	plan.Operations = append(plan.Operations,
		Operation{
			Op:    "add",
			Path:  flow.Pointer(actionsPath(CatchScope)...),
			Value: NewCatchScope(),
		},
		Operation{
			Op:    "add",
			Path:  flow.Pointer(actionsPath(FinallyScope)...),
			Value: NewFinallyScope(),
		},
	)
	return plan, nil
}

func actionsPath(keys ...string) []string {
	return append(append([]string{}, flow.ActionsPath...), keys...)
}

// JSON renders the plan as a JSON Patch document.
func (p *Plan) JSON() ([]byte, error) {
	return json.MarshalIndent(p.Operations, "", "  ")
}

// Apply applies the plan to data and returns the result with two-space
// indentation.
func (p *Plan) Apply(data []byte) ([]byte, error) {
	raw, err := json.Marshal(p.Operations)
	if err != nil {
		return nil, fmt.Errorf("failed to encode patch: %w", err)
	}
	ops, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode patch: %w", err)
	}
	out, err := ops.Apply(data)
	if err != nil {
		return nil, fmt.Errorf("failed to apply patch: %w", err)
	}
	return flow.Format(out)
}

// Document computes and applies the plan for doc.
func Document(doc *flow.Document) (*Plan, []byte, error) {
	plan, err := NewPlan(doc)
	if err != nil {
		return nil, nil, err
	}
	for _, op := range plan.Operations {
		logger.Info("%s %s", op.Op, op.Path)
	}
	out, err := plan.Apply(doc.Bytes())
	if err != nil {
		return nil, nil, err
	}
	return plan, out, nil
}

// Changes describes the edits in the fixed wording printed after a run.
func (p *Plan) Changes() []string {
	return []string{
		"Removed " + CatchScope + " from inside " + TryScope,
		"Added " + CatchScope + " at top level with runAfter: " + TryScope + " [Failed, TimedOut]",
		"Added " + GetErrorDetails + " Compose action",
		"Added " + UpdateScanSessionFailed + " action",
		"Added " + FinallyScope + " at top level",
		"Added " + CheckNoError + " condition with " + UpdateScanSessionCompleted,
	}
}

// Equal reports whether two documents are structurally equal.
func Equal(a, b []byte) bool {
	return jsonpatch.Equal(a, b)
}
