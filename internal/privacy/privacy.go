// Package privacy implements the secret-detection guard that runs
// over every memory text before it is stored: a fixed library of
// regex patterns for the common credential shapes (API keys, tokens,
// JWTs, private key blocks, inline password/token assignments).
package privacy

import "regexp"

// SecretType names a detected category of secret.
type SecretType string

const (
	SecretOpenAIKey     SecretType = "openai_api_key"
	SecretGitHubToken   SecretType = "github_token"
	SecretAWSKey        SecretType = "aws_access_key"
	SecretJWT           SecretType = "jwt"
	SecretSlackToken    SecretType = "slack_token"
	SecretPrivateKey    SecretType = "private_key_block"
	SecretGenericAssign SecretType = "generic_password_or_token"
)

type pattern struct {
	secretType SecretType
	re         *regexp.Regexp
}

var patterns = []pattern{
	{SecretOpenAIKey, regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`)},
	{SecretGitHubToken, regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{30,}`)},
	{SecretAWSKey, regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{SecretJWT, regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)},
	{SecretSlackToken, regexp.MustCompile(`xox[baprs]-[A-Za-z0-9-]{10,}`)},
	{SecretPrivateKey, regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`)},
	{SecretGenericAssign, regexp.MustCompile(`(?i)(password|token|secret)\s*[:=]\s*\S+`)},
}

// Detect returns every distinct secret type found in text, in the
// fixed pattern order above.
func Detect(text string) []SecretType {
	var found []SecretType
	for _, p := range patterns {
		if p.re.MatchString(text) {
			found = append(found, p.secretType)
		}
	}
	return found
}

// Redact replaces every match of every pattern with "[REDACTED]".
func Redact(text string) string {
	redacted := text
	for _, p := range patterns {
		redacted = p.re.ReplaceAllString(redacted, "[REDACTED]")
	}
	return redacted
}
