package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nhle/tasknotes/internal/errs"
)

var colorPattern = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)

// ValidColor reports whether c is a #RGB or #RRGGBB hex color.
func ValidColor(c string) bool { return colorPattern.MatchString(c) }

func requireText(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return errs.Validation(field, "must not be empty")
	}
	return nil
}

func requireEnum[T ~string](field string, v T, allowed ...T) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	opts := make([]string, len(allowed))
	for i, a := range allowed {
		opts[i] = string(a)
	}
	return errs.Validation(field, fmt.Sprintf("must be one of %s, got %q", strings.Join(opts, ", "), v))
}

func requireColor(field, c string) error {
	if !ValidColor(c) {
		return errs.Validation(field, fmt.Sprintf("must be a hex color like #8B5CF6, got %q", c))
	}
	return nil
}
