package playbook

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/hashicorp/hcl/v2"

	"github.com/vk/playparse/internal/raw"
)

// RawParamsKey holds the free-form argument string of modules invoked with a
// bare scalar, like `command: /sbin/reboot -t 3`.
const RawParamsKey = "_raw_params"

// reservedTaskKeys are task attributes, never module names. Keys here that
// the builder does not model are accepted and ignored rather than mistaken
// for a module invocation.
var reservedTaskKeys = map[string]bool{
	"name":          true,
	"when":          true,
	"dependencies":  true,
	"tags":          true,
	"notify":        true,
	"register":      true,
	"loop":          true,
	"with_items":    true,
	"vars":          true,
	"become":        true,
	"become_user":   true,
	"become_method": true,
	"ignore_errors": true,
	"changed_when":  true,
	"failed_when":   true,
	"delegate_to":   true,
	"run_once":      true,
	"environment":   true,
	"no_log":        true,
	"until":         true,
	"retries":       true,
	"delay":         true,
	"args":          true,
	"any_errors_fatal": true,
}

func isReservedTaskKey(key string) bool {
	return reservedTaskKeys[key]
}

// builtinModules lists the short module names recognized without a collection
// prefix. Dotted names are assumed to be collection modules and pass through.
var builtinModules = map[string]bool{
	"add_host":    true,
	"apt":         true,
	"assert":      true,
	"command":     true,
	"copy":        true,
	"cron":        true,
	"debug":       true,
	"dnf":         true,
	"fail":        true,
	"fetch":       true,
	"file":        true,
	"get_url":     true,
	"git":         true,
	"group":       true,
	"group_by":    true,
	"hostname":    true,
	"lineinfile":  true,
	"meta":        true,
	"mount":       true,
	"package":     true,
	"ping":        true,
	"raw":         true,
	"reboot":      true,
	"script":      true,
	"service":     true,
	"set_fact":    true,
	"setup":       true,
	"shell":       true,
	"slurp":       true,
	"stat":        true,
	"sysctl":      true,
	"systemd":     true,
	"template":    true,
	"unarchive":   true,
	"uri":         true,
	"user":        true,
	"wait_for":    true,
	"yum":         true,
}

// checkModuleName warns on module names that are neither builtin nor
// collection-qualified. Unknown names are not fatal; a suggestion is attached
// when a builtin is close enough.
func checkModuleName(name string, rng hcl.Range) hcl.Diagnostics {
	if builtinModules[name] || strings.Contains(name, ".") {
		return nil
	}
	detail := fmt.Sprintf("%q is not a recognized module name.", name)
	if suggestion := moduleSuggestion(name); suggestion != "" {
		detail = fmt.Sprintf("%s Did you mean %q?", detail, suggestion)
	}
	return hcl.Diagnostics{&hcl.Diagnostic{
		Severity: hcl.DiagWarning,
		Summary:  DiagUnknownModule,
		Detail:   detail,
		Subject:  rng.Ptr(),
	}}
}

func moduleSuggestion(name string) string {
	candidates := make([]string, 0, len(builtinModules))
	for m := range builtinModules {
		candidates = append(candidates, m)
	}
	sort.Strings(candidates)
	for _, m := range candidates {
		if dist := levenshtein.Distance(name, m, nil); dist < 3 {
			return m
		}
	}
	return ""
}

// normalizeArgs turns the value of a module key into the pending task's
// argument mapping. A mapping is copied per key; a scalar is split as
// free-form `k=v` fields, falling back to _raw_params when the fields are
// not assignments.
func normalizeArgs(node *raw.Node, pt *pendingTask) hcl.Diagnostics {
	var diags hcl.Diagnostics
	if node == nil || node.IsNull() {
		return nil
	}
	switch node.Kind {
	case raw.KindMapping:
		for _, pair := range node.Pairs {
			pt.args[pair.Key] = pair.Value
		}
	case raw.KindScalar:
		diags = append(diags, normalizeFreeform(node, pt)...)
	default:
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagBadPlaybook,
			Detail:   "Module arguments must be a mapping or a scalar.",
			Subject:  node.Range.Ptr(),
		})
	}
	return diags
}

// normalizeFreeform handles the shorthand string form. Fields are split with
// quote awareness so `msg="hello world"` stays one assignment; once a field
// without `=` appears, the rest of the string is the module's raw parameter.
func normalizeFreeform(node *raw.Node, pt *pendingTask) hcl.Diagnostics {
	src := node.Value
	fields := splitFreeform(src)

	var rawStart = -1
	for i, f := range fields {
		if !isAssignment(f) {
			rawStart = i
			break
		}
	}

	if rawStart == 0 || len(fields) == 0 {
		// Whole string is free-form.
		pt.args[RawParamsKey] = scalarArg(src, node.Range)
		return nil
	}

	for _, f := range fields[:assignEnd(fields, rawStart)] {
		k, v, _ := strings.Cut(f, "=")
		pt.args[k] = scalarArg(unquote(v), node.Range)
	}
	if rawStart >= 0 {
		pt.args[RawParamsKey] = scalarArg(strings.Join(fields[rawStart:], " "), node.Range)
	}
	return nil
}

func assignEnd(fields []string, rawStart int) int {
	if rawStart < 0 {
		return len(fields)
	}
	return rawStart
}

// scalarArg wraps a derived string as a scalar node so downstream resolution
// treats shorthand and mapping args uniformly.
func scalarArg(value string, rng hcl.Range) *raw.Node {
	return &raw.Node{Kind: raw.KindScalar, Value: value, Tag: "!!str", Range: rng}
}

// isAssignment reports whether a field is `key=value` with an identifier-ish
// key; `a == b` in a free-form command must not be mistaken for one.
func isAssignment(field string) bool {
	i := strings.IndexByte(field, '=')
	if i <= 0 || (i < len(field)-1 && field[i+1] == '=') {
		return false
	}
	for _, r := range field[:i] {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// splitFreeform splits on spaces outside quotes and template expressions, so
// `name={{ pkg }}` stays one field. Quotes stay attached to the field so
// assignment values can be unquoted later.
func splitFreeform(src string) []string {
	var fields []string
	var cur strings.Builder
	var quote byte
	depth := 0
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case quote != 0:
			cur.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '{' && i+1 < len(src) && src[i+1] == '{':
			depth++
			cur.WriteString("{{")
			i++
		case c == '}' && depth > 0 && i+1 < len(src) && src[i+1] == '}':
			depth--
			cur.WriteString("}}")
			i++
		case depth > 0:
			cur.WriteByte(c)
		case c == '\'' || c == '"':
			quote = c
			cur.WriteByte(c)
		case c == ' ' || c == '\t':
			if cur.Len() > 0 {
				fields = append(fields, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
