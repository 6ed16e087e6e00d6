package i18n

import apperrors "github.com/louisbranch/initiative/internal/platform/errors"

var enUS = map[apperrors.Code]string{
	// Sheet errors
	apperrors.CodeSheetNotFound: "The encounter sheet was not found",
	apperrors.CodeSheetFull:     "The encounter already has {{.Max}} combatants",
	apperrors.CodeSheetEmpty:    "The encounter has no combatants",
	apperrors.CodeSheetEmptyID:  "A sheet id is required",

	// Combatant errors
	apperrors.CodeCombatantNotFound:    "Combatant {{.CombatantID}} was not found",
	apperrors.CodeCombatantEmptyName:   "Combatant name cannot be empty",
	apperrors.CodeCombatantInvalidType: "Combatant type {{.Type}} is not supported",
	apperrors.CodeCombatantDuplicateID: "Combatant {{.CombatantID}} is already on the sheet",

	// Dice errors
	apperrors.CodeDiceInvalidSpec: "Dice {{.Expression}} must look like NdS with 4, 6, 8, 10, 12, 20 or 100 sides",

	// Transport errors
	apperrors.CodeTransportUpdateFailed: "Could not save the sheet",
	apperrors.CodeTransportFetchFailed:  "Could not load the sheet",
}

var ptBR = map[apperrors.Code]string{
	apperrors.CodeSheetNotFound: "A ficha do encontro não foi encontrada",
	apperrors.CodeSheetFull:     "O encontro já tem {{.Max}} combatentes",
	apperrors.CodeSheetEmpty:    "O encontro não tem combatentes",
	apperrors.CodeSheetEmptyID:  "O id da ficha é obrigatório",

	apperrors.CodeCombatantNotFound:    "O combatente {{.CombatantID}} não foi encontrado",
	apperrors.CodeCombatantEmptyName:   "O nome do combatente não pode ficar vazio",
	apperrors.CodeCombatantInvalidType: "O tipo de combatente {{.Type}} não é suportado",
	apperrors.CodeCombatantDuplicateID: "O combatente {{.CombatantID}} já está na ficha",

	apperrors.CodeDiceInvalidSpec: "Os dados {{.Expression}} devem seguir NdS com 4, 6, 8, 10, 12, 20 ou 100 lados",

	apperrors.CodeTransportUpdateFailed: "Não foi possível salvar a ficha",
	apperrors.CodeTransportFetchFailed:  "Não foi possível carregar a ficha",
}
