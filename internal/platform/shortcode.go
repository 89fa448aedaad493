package platform

import (
	"fmt"
	"math/big"
	"strings"
)

const shortcodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// Los shortcodes de posts privados agregan un sufijo de 28 caracteres
const maxPublicShortcode = 28

// MediaIDFromShortcode decodifica un shortcode (base64 url-safe) al id numérico del media
func MediaIDFromShortcode(code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("empty shortcode")
	}
	if len(code) > maxPublicShortcode {
		code = code[:len(code)-maxPublicShortcode]
	}

	id := new(big.Int)
	base := big.NewInt(64)
	for _, r := range code {
		idx := strings.IndexRune(shortcodeAlphabet, r)
		if idx < 0 {
			return "", fmt.Errorf("invalid shortcode character %q", r)
		}
		id.Mul(id, base)
		id.Add(id, big.NewInt(int64(idx)))
	}

	return id.String(), nil
}
