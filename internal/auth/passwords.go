package auth

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	passwordMinLength = 8
	// passwordMaxBytes is the most input bcrypt will hash.
	passwordMaxBytes = 72
)

// commonPasswords is a short deny list of passwords seen at the top of every leak.
var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "passw0rd": {},
	"12345678": {}, "123456789": {}, "1234567890": {}, "87654321": {},
	"qwertyui": {}, "qwerty123": {}, "qwertyuiop": {}, "asdfghjk": {},
	"iloveyou": {}, "sunshine": {}, "princess": {}, "football": {},
	"baseball": {}, "superman": {}, "trustno1": {}, "welcome1": {},
	"letmein1": {}, "abc12345": {}, "abcdefgh": {}, "11111111": {},
	"00000000": {}, "monkey123": {}, "dragon123": {}, "starwars": {},
	"whatever": {}, "changeme": {}, "admin123": {}, "computer": {},
}

// passwordProblems lists every strength rule the password breaks.
func passwordProblems(username, password string) []string {
	var problems []string

	if utf8.RuneCountInString(password) < passwordMinLength {
		problems = append(problems, "This password is too short. It must contain at least 8 characters.")
	}
	if len(password) > passwordMaxBytes {
		problems = append(problems, "This password is too long. It must be at most 72 bytes.")
	}
	if tooSimilar(username, password) {
		problems = append(problems, "The password is too similar to the username.")
	}
	if _, common := commonPasswords[strings.ToLower(password)]; common {
		problems = append(problems, "This password is too common.")
	}
	if password != "" && strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		problems = append(problems, "This password is entirely numeric.")
	}
	return problems
}

func tooSimilar(username, password string) bool {
	u := strings.ToLower(username)
	p := strings.ToLower(password)
	if utf8.RuneCountInString(u) < 3 || p == "" {
		return false
	}
	return strings.Contains(p, u) || strings.Contains(u, p)
}
