package password

// defaultCommonPasswords is the built-in disallow list. It is a starting
// point, not a contract: deployments load a real wordlist through
// WithCommonPasswords.
func defaultCommonPasswords() map[string]struct{} {
	common := []string{
		"password", "123456", "12345678", "qwerty", "abc123",
		"letmein", "monkey", "password1", "1234", "12345",
		"111111", "123123", "dragon", "iloveyou", "admin",
		"welcome", "login", "passw0rd", "football", "master",
	}
	set := make(map[string]struct{}, len(common))
	for _, w := range common {
		set[w] = struct{}{}
	}
	return set
}
