package model

import "strings"

type Token string

const (
	TokenSOL  Token = "SOL"
	TokenUSDC Token = "USDC"
	TokenBONK Token = "BONK"
)

var SupportedTokens = []Token{TokenSOL, TokenUSDC, TokenBONK}

func ParseToken(value string) (Token, bool) {
	candidate := Token(strings.ToUpper(strings.TrimSpace(value)))
	for _, t := range SupportedTokens {
		if t == candidate {
			return t, true
		}
	}
	return "", false
}
