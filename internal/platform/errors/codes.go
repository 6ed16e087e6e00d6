// Package errors provides coded domain errors that map onto gRPC statuses.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Sheet errors
	CodeSheetNotFound Code = "SHEET_NOT_FOUND"
	CodeSheetFull     Code = "SHEET_FULL"
	CodeSheetEmpty    Code = "SHEET_EMPTY"
	CodeSheetEmptyID  Code = "SHEET_EMPTY_ID"

	// Combatant errors
	CodeCombatantNotFound    Code = "COMBATANT_NOT_FOUND"
	CodeCombatantEmptyName   Code = "COMBATANT_EMPTY_NAME"
	CodeCombatantInvalidType Code = "COMBATANT_INVALID_TYPE"
	CodeCombatantDuplicateID Code = "COMBATANT_DUPLICATE_ID"

	// Dice errors
	CodeDiceInvalidSpec Code = "DICE_INVALID_SPEC"

	// Transport errors
	CodeTransportUpdateFailed Code = "TRANSPORT_UPDATE_FAILED"
	CodeTransportFetchFailed  Code = "TRANSPORT_FETCH_FAILED"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeSheetEmptyID,
		CodeCombatantEmptyName,
		CodeCombatantInvalidType,
		CodeDiceInvalidSpec:
		return codes.InvalidArgument

	case CodeSheetFull:
		return codes.ResourceExhausted

	case CodeSheetEmpty:
		return codes.FailedPrecondition

	case CodeSheetNotFound,
		CodeCombatantNotFound:
		return codes.NotFound

	case CodeCombatantDuplicateID:
		return codes.AlreadyExists

	case CodeTransportUpdateFailed,
		CodeTransportFetchFailed:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}
