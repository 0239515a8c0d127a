package twofa

import (
	"strconv"
	"strings"

	"github.com/khanghh/supagate/model"
)

const actorPlaceholder = "{actor}"

// Rule marks a route prefix as sensitive for the listed methods.
type Rule struct {
	Pattern   string
	Methods   []string
	AdminOnly bool
}

var DefaultRules = []Rule{
	{Pattern: "/api/users/{actor}", Methods: []string{"PATCH", "DELETE"}},
	{Pattern: "/api/users/{actor}/email", Methods: []string{"POST"}},
	{Pattern: "/api/users/{actor}/password", Methods: []string{"POST"}},
	{Pattern: "/api/settings", Methods: []string{"POST"}, AdminOnly: true},
	{Pattern: "/api/extensions", Methods: []string{"PATCH", "DELETE"}, AdminOnly: true},
	{Pattern: "/api/supabase/disconnect-provider", Methods: []string{"POST"}},
	{Pattern: "/api/supabase/2fa/disable", Methods: []string{"POST"}},
}

func (r Rule) allows(method string) bool {
	for _, m := range r.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// matchPrefix reports whether path is prefix or continues it with a new segment.
func matchPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// Classify matches the request against DefaultRules.
func Classify(path, method string, actor *model.User) (Rule, bool) {
	return ClassifyWith(DefaultRules, path, method, actor)
}

// ClassifyWith returns the first rule making the request sensitive for actor.
func ClassifyWith(rules []Rule, path, method string, actor *model.User) (Rule, bool) {
	if actor == nil {
		return Rule{}, false
	}
	actorID := strconv.FormatUint(uint64(actor.ID), 10)
	for _, rule := range rules {
		if rule.AdminOnly && !actor.IsAdmin {
			continue
		}
		if !rule.allows(method) {
			continue
		}
		prefix := strings.ReplaceAll(rule.Pattern, actorPlaceholder, actorID)
		if matchPrefix(path, prefix) {
			return rule, true
		}
	}
	return Rule{}, false
}
