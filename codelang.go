// codelang.go
package main

import (
	"regexp"
	"strings"
)

var (
	pythonDefRe  = regexp.MustCompile(`\bdef\s+\w+\s*\(`)
	sqlKeywordRe = regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE|CREATE TABLE)\b`)
	yamlKeyRe    = regexp.MustCompile(`(?m)^\w+:\s*$`)
	yamlDashRe   = regexp.MustCompile(`(?m)^\s*-\s+\w+:`)
	htmlOpenRe   = regexp.MustCompile(`<\w+[^>]*>`)
	htmlCloseRe  = regexp.MustCompile(`</\w+>`)
	cssRuleRe    = regexp.MustCompile(`[.#]\w+\s*\{`)
	cssMediaRe   = regexp.MustCompile(`@media\s`)
)

var shellCommands = []string{"apt-get", "npm install", "pip install", "git clone", "docker ", "kubectl "}

// DetectCodeLanguage guesses a fenced-code-block language tag from syntactic
// fingerprints. Rules run in a fixed priority order and the first match
// wins; overlap order matters (rust before javascript, both use "let").
// Returns "" when nothing matches.
func DetectCodeLanguage(code string) string {
	trimmed := strings.TrimSpace(code)
	lines := strings.Split(code, "\n")
	firstLine := ""
	if len(lines) > 0 {
		firstLine = strings.TrimSpace(lines[0])
	}

	// Shell: prompt prefix, shebang, or common CLI commands.
	if strings.HasPrefix(firstLine, "$") || strings.HasPrefix(firstLine, "#!") {
		return "bash"
	}
	for _, cmd := range shellCommands {
		if strings.Contains(code, cmd) {
			return "bash"
		}
	}

	// Python: import/def/print, confirmed by known modules or a def signature.
	if strings.Contains(code, "import ") || strings.Contains(code, "def ") || strings.Contains(code, "print(") {
		if strings.Contains(code, "from __future__") ||
			strings.Contains(code, "import numpy") ||
			strings.Contains(code, "import pandas") {
			return "python"
		}
		if pythonDefRe.MatchString(code) {
			return "python"
		}
	}

	if strings.Contains(code, "fn main()") || strings.Contains(code, "let mut ") ||
		strings.Contains(code, "-> Result<") || strings.Contains(code, "println!") {
		return "rust"
	}

	if strings.Contains(code, "package main") || strings.Contains(code, "func ") ||
		strings.Contains(code, `import "`) {
		return "go"
	}

	if strings.Contains(code, "public class") || strings.Contains(code, "public static void main") {
		return "java"
	}

	if strings.Contains(code, "const ") || strings.Contains(code, "let ") ||
		strings.Contains(code, "function ") || strings.Contains(code, "=>") {
		if strings.Contains(code, "interface ") ||
			strings.Contains(code, ": string") || strings.Contains(code, ": number") {
			return "typescript"
		}
		return "javascript"
	}

	if strings.Contains(code, "#include") {
		if strings.Contains(code, "<iostream>") || strings.Contains(code, "std::") ||
			strings.Contains(code, "::") {
			return "cpp"
		}
		return "c"
	}

	if sqlKeywordRe.MatchString(code) {
		return "sql"
	}

	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") &&
		strings.Contains(code, `"`) && strings.Contains(code, ":") {
		return "json"
	}

	if yamlKeyRe.MatchString(code) || yamlDashRe.MatchString(code) {
		return "yaml"
	}

	if htmlOpenRe.MatchString(code) && htmlCloseRe.MatchString(code) {
		return "html"
	}

	if cssRuleRe.MatchString(code) || cssMediaRe.MatchString(code) {
		return "css"
	}

	return ""
}
