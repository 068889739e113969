package irc

// MatchMask reports whether name matches a glob mask where '*' matches any run
// of characters and '?' exactly one. Matching uses the protocol case mapping.
// An empty mask matches everything.
func MatchMask(mask, name string) bool {
	if mask == "" {
		return true
	}
	return match([]rune(Fold(mask)), []rune(Fold(name)))
}

func match(p, s []rune) bool {
	star, resume := -1, 0
	i, j := 0, 0
	for j < len(s) {
		switch {
		case i < len(p) && (p[i] == '?' || p[i] == s[j]):
			i++
			j++
		case i < len(p) && p[i] == '*':
			star = i
			resume = j
			i++
		case star >= 0:
			i = star + 1
			resume++
			j = resume
		default:
			return false
		}
	}
	for i < len(p) && p[i] == '*' {
		i++
	}
	return i == len(p)
}
