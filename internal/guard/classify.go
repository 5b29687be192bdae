package guard

import "strings"

// Class is the guard's view of a request path.
type Class int

const (
	Public Class = iota
	LoginPage
	Protected
)

func (c Class) String() string {
	switch c {
	case LoginPage:
		return "login"
	case Protected:
		return "protected"
	default:
		return "public"
	}
}

// Classifier maps paths to classes. The login path matches exactly; a
// protected prefix matches itself and anything below it on a "/" boundary,
// so "/admin" covers "/admin/roles" but not "/administrator".
type Classifier struct {
	loginPath string
	prefixes  []string
}

func NewClassifier(loginPath string, prefixes []string) Classifier {
	cleaned := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if p != "/" {
			p = strings.TrimRight(p, "/")
		}
		cleaned = append(cleaned, p)
	}
	return Classifier{loginPath: loginPath, prefixes: cleaned}
}

func (c Classifier) Classify(path string) Class {
	if path == c.loginPath {
		return LoginPage
	}
	for _, p := range c.prefixes {
		if underPrefix(path, p) {
			return Protected
		}
	}
	return Public
}

func underPrefix(path, prefix string) bool {
	if prefix == "/" {
		return strings.HasPrefix(path, "/")
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
