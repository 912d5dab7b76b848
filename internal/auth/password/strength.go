package password

import "strings"

// keyboardSequences are the patterns scanned for 3-character sequential
// runs, forward or reversed.
var keyboardSequences = []string{
	"abcdefghijklmnopqrstuvwxyz",
	"qwertyuiop",
	"asdfghjkl",
	"zxcvbnm",
	"01234567890",
}

// Strength computes an advisory 0-100 score for a password. It is
// independent of policy enforcement: a policy-valid password may still score
// weak. Scoring:
//
//   - length: 4 points per character, capped at 40
//   - character classes: 5 points per class present (lower, upper, digit,
//     special), at most 20
//   - balanced case mixing: up to 10, scaled by min/max of lower and upper
//     counts
//   - digits spread across the password rather than clustered: 5
//   - any special character present: 5
//   - sequential 3-character runs (keyboard rows, alphabet, digits, either
//     direction): -5, applied once
//   - 3 identical consecutive characters: -5, applied once
func Strength(password string) int {
	score := 0

	lengthScore := len(password) * 4
	if lengthScore > 40 {
		lengthScore = 40
	}
	score += lengthScore

	var lowerCount, upperCount int
	var hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lowerCount++
		case r >= 'A' && r <= 'Z':
			upperCount++
		case r >= '0' && r <= '9':
			hasDigit = true
		}
		if strings.ContainsRune(specialChars, r) {
			hasSpecial = true
		}
	}

	classes := 0
	if lowerCount > 0 {
		classes++
	}
	if upperCount > 0 {
		classes++
	}
	if hasDigit {
		classes++
	}
	if hasSpecial {
		classes++
	}
	score += classes * 5

	if lowerCount > 0 && upperCount > 0 {
		minCount, maxCount := lowerCount, upperCount
		if minCount > maxCount {
			minCount, maxCount = maxCount, minCount
		}
		score += int(10 * float64(minCount) / float64(maxCount))
	}

	if hasDigit && digitsSpread(password) {
		score += 5
	}
	if hasSpecial {
		score += 5
	}

	if hasSequentialRun(password) {
		score -= 5
	}
	if hasRepeatedRun(password, 3) {
		score -= 5
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// StrengthLabel maps a score to its descriptive band. Lower bounds are
// inclusive.
func StrengthLabel(score int) string {
	switch {
	case score < 20:
		return "Very Weak"
	case score < 40:
		return "Weak"
	case score < 60:
		return "Moderate"
	case score < 80:
		return "Strong"
	default:
		return "Very Strong"
	}
}

// digitsSpread reports whether the first-to-last digit span exceeds half the
// password length, i.e. digits are distributed rather than clustered.
func digitsSpread(password string) bool {
	first, last := -1, -1
	for i := 0; i < len(password); i++ {
		if password[i] >= '0' && password[i] <= '9' {
			if first == -1 {
				first = i
			}
			last = i
		}
	}
	return first != -1 && last > first && float64(last-first) > float64(len(password))/2
}

func hasSequentialRun(password string) bool {
	lowered := strings.ToLower(password)
	for _, seq := range keyboardSequences {
		for i := 0; i+3 <= len(seq); i++ {
			window := seq[i : i+3]
			if strings.Contains(lowered, window) || strings.Contains(lowered, reverse(window)) {
				return true
			}
		}
	}
	return false
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
