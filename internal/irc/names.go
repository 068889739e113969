package irc

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

var (
	nicknamePattern = regexp.MustCompile(`^[A-Za-z\[\]\\` + "`" + `_^{|}][A-Za-z0-9\[\]\\` + "`" + `_^{|}-]{0,29}$`)
	channelPattern  = regexp.MustCompile(`^[#&+!][^\x00\x07\r\n ,:]{1,49}$`)
	hostnamePattern = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9-]*\.)*[A-Za-z0-9][A-Za-z0-9-]*\.?$`)
)

// rfc1459 treats []\~ as the upper-case forms of {}|^.
var rfc1459 = strings.NewReplacer("[", "{", "]", "}", "\\", "|", "~", "^")

// Fold returns the case-insensitive key for a nickname, channel or server name.
func Fold(name string) string {
	return rfc1459.Replace(cases.Fold().String(name))
}

// EqualFold compares two names under the protocol case mapping.
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}

// ValidNickname reports whether s is usable as a nickname.
func ValidNickname(s string) bool {
	return nicknamePattern.MatchString(s)
}

// ValidChannel reports whether s is a channel name.
func ValidChannel(s string) bool {
	return channelPattern.MatchString(s)
}

// ValidServerName reports whether s looks like a server host name. Server
// names must contain a dot so they cannot be confused with nicknames.
func ValidServerName(s string) bool {
	return strings.Contains(s, ".") && hostnamePattern.MatchString(s)
}
