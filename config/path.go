package config

import "strings"

// NormalizePath converts separators to forward slashes and strips a leading "./".
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return strings.TrimPrefix(p, "./")
}
