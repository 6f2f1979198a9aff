package classify

import (
	"regexp"
	"strings"
)

var (
	userPronounPattern    = regexp.MustCompile(`(?i)\b(i|me|my|mine)\b`)
	userPreferencePattern = regexp.MustCompile(`(?i)\b(prefer|like|hate|love|always want|usually)\b`)
	userIdentityPattern   = regexp.MustCompile(`(?i)\b(my name|i am|i'm|i work as)\b`)

	projectFilePattern    = filePathPattern
	projectVersionPattern = versionPattern
	projectArchPattern    = regexp.MustCompile(`(?i)\b(repo|repository|codebase|module|package|service|database|schema|endpoint)\b`)
)

// InferSubject decides whether a memory is about the user or about
// the project, falling back to ScopeProject when signals are tied or
// absent. Subject is a narrower notion than Scope: a user-subject
// memory is always stored at global scope, but a project-subject
// memory stays at whatever scope the category already routed it to.
func InferSubject(text string) Scope {
	lower := strings.ToLower(text)

	userHits := 0
	if userIdentityPattern.MatchString(lower) {
		userHits += 2
	}
	if userPreferencePattern.MatchString(lower) {
		userHits++
	}
	if userPronounPattern.MatchString(lower) {
		userHits++
	}

	projectHits := 0
	if projectFilePattern.MatchString(text) {
		projectHits++
	}
	if projectVersionPattern.MatchString(text) {
		projectHits++
	}
	if projectArchPattern.MatchString(lower) {
		projectHits++
	}

	if userHits > projectHits {
		return ScopeGlobal
	}
	return ScopeProject
}
