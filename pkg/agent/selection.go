package agent

import (
	"strconv"
	"strings"

	"github.com/0x-stone/zspa/pkg/domain"
)

// FindBySelection matches a user reply against the offered candidates. The
// strategies are tried in order over the whole list: 1-based index (digits
// only), title or display name substring, exact id, website substring. An
// index out of range falls through to the text matches. It returns nil when
// nothing matches.
func FindBySelection(reply string, candidates []domain.Cause) *domain.Cause {
	q := strings.ToLower(strings.TrimSpace(reply))
	if q == "" || len(candidates) == 0 {
		return nil
	}

	if isDigits(q) {
		if n, err := strconv.Atoi(q); err == nil && n >= 1 && n <= len(candidates) {
			c := candidates[n-1]
			return &c
		}
	}

	strategies := []func(domain.Cause) bool{
		func(c domain.Cause) bool {
			return strings.Contains(strings.ToLower(c.Title), q) ||
				strings.Contains(strings.ToLower(c.DisplayName), q)
		},
		func(c domain.Cause) bool { return strings.ToLower(c.ID) == q },
		func(c domain.Cause) bool {
			return c.WebsiteURL != "" && strings.Contains(strings.ToLower(c.WebsiteURL), q)
		},
	}
	for _, match := range strategies {
		for _, c := range candidates {
			if match(c) {
				return &c
			}
		}
	}
	return nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
