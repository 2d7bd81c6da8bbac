package patch

import "github.com/devicelab-dev/flowpatch/pkg/flow"

// Action names written by the patch.
const (
	TryScope     = "Try_Scope"
	CatchScope   = "Catch_Scope"
	FinallyScope = "Finally_Scope"

	SetHasErrorTrue            = "Set_HasError_True"
	GetErrorDetails            = "Get_Error_Details"
	UpdateScanSessionFailed    = "Update_Scan_Session_Failed"
	CheckNoError               = "Check_No_Error"
	UpdateScanSessionCompleted = "Update_Scan_Session_Completed"
)

// Scan session status option values in Dataverse.
const (
	SessionCompleted = 100000000
	SessionFailed    = 100000002
)

const (
	dataverseConnection = "shared_commondataserviceforapps"
	dataverseAPI        = "/providers/Microsoft.PowerApps/apis/shared_commondataserviceforapps"
	sessionEntity       = "sp_scansessions"
	sessionRecordID     = "@variables('ScanSessionId')"
	hasErrorVariable    = "HasError"

	// connectionKey pulls the connection token out of the trigger headers.
	connectionKey = "@json(decodeBase64(triggerOutputs().headers['X-MS-APIM-Tokens']))['$ConnectionKey']"
)

// NewCatchScope builds the Catch_Scope action. It runs when Try_Scope fails
// or times out, flags the error, captures the try result and marks the scan
// session failed.
func NewCatchScope() *flow.Action {
	return &flow.Action{
		Actions: map[string]*flow.Action{
			SetHasErrorTrue: {
				RunAfter: flow.Start(),
				Metadata: flow.Metadata{OperationMetadataID: "2d93ebed-cc47-4ab2-a059-00bec0f356de"},
				Type:     flow.TypeSetVariable,
				Inputs: flow.VariableInputs{
					Name:  hasErrorVariable,
					Value: true,
				},
			},
			GetErrorDetails: {
				RunAfter: flow.After(SetHasErrorTrue, flow.Succeeded),
				Metadata: flow.Metadata{OperationMetadataID: "error-details-compose"},
				Type:     flow.TypeCompose,
				Inputs:   "@result('" + TryScope + "')",
			},
			UpdateScanSessionFailed: {
				RunAfter: flow.After(GetErrorDetails, flow.Succeeded),
				Metadata: flow.Metadata{OperationMetadataID: "update-session-failed"},
				Type:     flow.TypeOpenAPIConnection,
				Inputs: updateSession(map[string]any{
					"item/sp_status":       SessionFailed,
					"item/sp_completedon":  "@utcNow()",
					"item/sp_errormessage": "@string(outputs('" + GetErrorDetails + "'))",
				}),
			},
		},
		RunAfter: flow.After(TryScope, flow.Failed, flow.TimedOut),
		Metadata: flow.Metadata{OperationMetadataID: "catch-scope-id"},
		Type:     flow.TypeScope,
	}
}

// NewFinallyScope builds the Finally_Scope action. It runs once both
// Try_Scope and Catch_Scope are done, whatever their outcome, and marks the
// scan session completed when no error was flagged.
func NewFinallyScope() *flow.Action {
	return &flow.Action{
		Actions: map[string]*flow.Action{
			CheckNoError: {
				Actions: map[string]*flow.Action{
					UpdateScanSessionCompleted: {
						RunAfter: flow.Start(),
						Metadata: flow.Metadata{OperationMetadataID: "update-session-completed"},
						Type:     flow.TypeOpenAPIConnection,
						Inputs: updateSession(map[string]any{
							"item/sp_status":                      SessionCompleted,
							"item/sp_completedon":                 "@utcNow()",
							"item/sp_totalfolders":                "@variables('TotalFolders')",
							"item/sp_folderswithuniquepermissions": "@variables('FoldersWithUniquePerms')",
						}),
					},
				},
				Else:     &flow.Branch{Actions: map[string]*flow.Action{}},
				RunAfter: flow.Start(),
				Expression: map[string][]any{
					"equals": {"@variables('" + hasErrorVariable + "')", false},
				},
				Metadata: flow.Metadata{OperationMetadataID: "check-no-error-condition"},
				Type:     flow.TypeIf,
			},
		},
		RunAfter: flow.RunAfter{
			TryScope:   flow.AllStatuses(),
			CatchScope: flow.AllStatuses(),
		},
		Metadata: flow.Metadata{OperationMetadataID: "finally-scope-id"},
		Type:     flow.TypeScope,
	}
}

// updateSession builds an UpdateRecord call against the scan session row.
func updateSession(fields map[string]any) flow.ConnectionInputs {
	params := map[string]any{
		"entityName": sessionEntity,
		"recordId":   sessionRecordID,
	}
	for k, v := range fields {
		params[k] = v
	}
	return flow.ConnectionInputs{
		Host: flow.ConnectionHost{
			ConnectionName: dataverseConnection,
			OperationID:    "UpdateRecord",
			APIID:          dataverseAPI,
		},
		Parameters: params,
		Authentication: flow.Authentication{
			Type:  "Raw",
			Value: connectionKey,
		},
	}
}
