package main

import "unicode"

const maxPlayerIDLength = 64

// isValidPlayerID accepts letters, digits, '-' and '_', which covers both
// uuid subjects and the short handles used by bots.
func isValidPlayerID(playerID string) bool {
	if playerID == "" || len(playerID) > maxPlayerIDLength {
		return false
	}
	for _, r := range playerID {
		if r == '-' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}

func checkPlayerID(playerID string) error {
	if !isValidPlayerID(playerID) {
		return invalidInput("invalid_player", "invalid player id")
	}
	return nil
}

func checkCoinAmount(playerID string, amount int64) error {
	if err := checkPlayerID(playerID); err != nil {
		return err
	}
	if amount <= 0 {
		return invalidInput("invalid_amount", "amount must be positive")
	}
	return nil
}
