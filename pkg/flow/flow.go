// Package flow handles loading, locating and writing Power Automate workflow
// definition files, and models the action nodes that can be inserted into them.
package flow

// RunStatus is a terminal status an action can end in.
type RunStatus string

// Terminal statuses accepted in runAfter conditions.
const (
	Succeeded RunStatus = "Succeeded"
	Failed    RunStatus = "Failed"
	Skipped   RunStatus = "Skipped"
	TimedOut  RunStatus = "TimedOut"
)

// AllStatuses returns every terminal status, in the order the designer emits them.
func AllStatuses() []RunStatus {
	return []RunStatus{Succeeded, Failed, Skipped, TimedOut}
}

// ActionType identifies the kind of an action node.
type ActionType string

// Action types used by the scopes this tool writes.
const (
	TypeScope             ActionType = "Scope"
	TypeSetVariable       ActionType = "SetVariable"
	TypeCompose           ActionType = "Compose"
	TypeOpenAPIConnection ActionType = "OpenApiConnection"
	TypeIf                ActionType = "If"
)

// RunAfter maps a predecessor action name to the statuses that let the
// action run. Predecessors must live at the same nesting level.
type RunAfter map[string][]RunStatus

// Metadata holds the designer's identifying fields for an action.
type Metadata struct {
	OperationMetadataID string `json:"operationMetadataId"`
}

// Action is a single node of a workflow definition's actions mapping.
// Field order follows the order the designer writes keys in.
type Action struct {
	Actions    map[string]*Action `json:"actions,omitempty"`
	Else       *Branch            `json:"else,omitempty"`
	RunAfter   RunAfter           `json:"runAfter"`
	Expression any                `json:"expression,omitempty"`
	Metadata   Metadata           `json:"metadata"`
	Type       ActionType         `json:"type"`
	Inputs     any                `json:"inputs,omitempty"`
}

// Branch is the else side of an If action.
type Branch struct {
	Actions map[string]*Action `json:"actions"`
}

// ConnectionInputs are the inputs of an OpenApiConnection action.
type ConnectionInputs struct {
	Host           ConnectionHost `json:"host"`
	Parameters     map[string]any `json:"parameters"`
	Authentication Authentication `json:"authentication"`
}

// ConnectionHost names the connector and operation an action invokes.
type ConnectionHost struct {
	ConnectionName string `json:"connectionName"`
	OperationID    string `json:"operationId"`
	APIID          string `json:"apiId"`
}

// Authentication is the auth block of a connector call.
type Authentication struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// VariableInputs are the inputs of a SetVariable action.
type VariableInputs struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// After returns a RunAfter with a single predecessor.
func After(name string, statuses ...RunStatus) RunAfter {
	return RunAfter{name: statuses}
}

// Start returns the empty RunAfter of the first action in a scope.
func Start() RunAfter {
	return RunAfter{}
}
