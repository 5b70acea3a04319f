package inventory

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/playparse/internal/pattern"
)

// iniSectionKind distinguishes the three INI section flavors.
type iniSectionKind int

const (
	sectionHosts iniSectionKind = iota
	sectionVars
	sectionChildren
)

// parseINI runs the line-based state machine over classic INI inventory
// text. Malformed individual lines are skipped with a warning; only the
// structural passes afterwards can fail harder.
func (inv *Inventory) parseINI(src []byte, filename string) hcl.Diagnostics {
	var diags hcl.Diagnostics

	section := GroupUngrouped
	kind := sectionHosts

	for lineNo, line := range strings.Split(string(src), "\n") {
		rng := hcl.Range{
			Filename: filename,
			Start:    hcl.Pos{Line: lineNo + 1, Column: 1},
			End:      hcl.Pos{Line: lineNo + 1, Column: len(line) + 1},
		}
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}

		if line[0] == '[' {
			name, k, err := parseSectionHeader(line)
			if err != nil {
				diags = append(diags, warnLine(rng, err.Error()))
				continue
			}
			section, kind = name, k
			inv.group(section)
			continue
		}

		switch kind {
		case sectionHosts:
			diags = append(diags, inv.parseHostLine(line, section, rng)...)
		case sectionVars:
			key, val, err := parseKeyValue(line)
			if err != nil {
				diags = append(diags, warnLine(rng, err.Error()))
				continue
			}
			inv.group(section).Vars[key] = val
		case sectionChildren:
			child := strings.Fields(line)[0]
			inv.group(child)
			parent := inv.group(section)
			parent.Children = append(parent.Children, child)
		}
	}
	return diags
}

func parseSectionHeader(line string) (string, iniSectionKind, error) {
	if !strings.HasSuffix(line, "]") {
		return "", 0, fmt.Errorf("section header %q is not closed", line)
	}
	name := line[1 : len(line)-1]
	switch {
	case strings.HasSuffix(name, ":vars"):
		return strings.TrimSuffix(name, ":vars"), sectionVars, nil
	case strings.HasSuffix(name, ":children"):
		return strings.TrimSuffix(name, ":children"), sectionChildren, nil
	case name == "":
		return "", 0, fmt.Errorf("empty section name")
	case strings.Contains(name, ":"):
		return "", 0, fmt.Errorf("unknown section suffix in %q", line)
	}
	return name, sectionHosts, nil
}

// parseHostLine handles one `host [k=v ...]` entry, expanding range patterns
// in the host token and splicing paired ranges in var values.
func (inv *Inventory) parseHostLine(line, groupName string, rng hcl.Range) hcl.Diagnostics {
	var diags hcl.Diagnostics

	fields, err := splitFields(line)
	if err != nil {
		return append(diags, warnLine(rng, err.Error()))
	}

	hostToken := fields[0]
	names, err := pattern.Expand(hostToken)
	if err != nil {
		return append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  DiagBadPattern,
			Detail:   err.Error() + ".",
			Subject:  rng.Ptr(),
		})
	}

	type varCol struct {
		key    string
		values []string // one per expanded host
		typed  cty.Value
		ranged bool
	}
	var cols []varCol
	for _, field := range fields[1:] {
		key, rawVal, err := splitKeyValue(field)
		if err != nil {
			diags = append(diags, warnLine(rng, err.Error()))
			continue
		}
		if strings.ContainsRune(rawVal, '[') {
			_, paired, err := pattern.ExpandPaired(hostToken, rawVal)
			if err != nil {
				if _, isCard := err.(*pattern.CardinalityError); isCard {
					return append(diags, &hcl.Diagnostic{
						Severity: hcl.DiagError,
						Summary:  DiagCardinality,
						Detail:   err.Error() + ".",
						Subject:  rng.Ptr(),
					})
				}
				diags = append(diags, warnLine(rng, err.Error()))
				continue
			}
			cols = append(cols, varCol{key: key, values: paired, ranged: true})
			continue
		}
		cols = append(cols, varCol{key: key, typed: typedScalar(rawVal)})
	}

	for i, name := range names {
		inv.addHostToGroup(name, groupName)
		h := inv.host(name)
		for _, col := range cols {
			if col.ranged {
				h.inline[col.key] = cty.StringVal(col.values[i])
			} else {
				h.inline[col.key] = col.typed
			}
		}
	}
	return diags
}

func warnLine(rng hcl.Range, msg string) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagWarning,
		Summary:  DiagMalformedLine,
		Detail:   strings.ToUpper(msg[:1]) + msg[1:] + "; line skipped.",
		Subject:  rng.Ptr(),
	}
}

func parseKeyValue(line string) (string, cty.Value, error) {
	key, rawVal, err := splitKeyValue(line)
	if err != nil {
		return "", cty.NilVal, err
	}
	return key, typedScalar(rawVal), nil
}

func splitKeyValue(field string) (string, string, error) {
	eq := strings.IndexByte(field, '=')
	if eq <= 0 {
		return "", "", fmt.Errorf("expected key=value, found %q", field)
	}
	return field[:eq], strings.Trim(field[eq+1:], `"'`), nil
}

// splitFields splits on whitespace while honoring single and double quotes,
// so `greeting="hello world"` stays one field.
func splitFields(line string) ([]string, error) {
	var fields []string
	var sb strings.Builder
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			sb.WriteByte(c)
		case c == '\'' || c == '"':
			quote = c
			sb.WriteByte(c)
		case c == ' ' || c == '\t':
			if sb.Len() > 0 {
				fields = append(fields, sb.String())
				sb.Reset()
			}
		default:
			sb.WriteByte(c)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote")
	}
	if sb.Len() > 0 {
		fields = append(fields, sb.String())
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty host entry")
	}
	return fields, nil
}

// typedScalar applies INI value typing: integers, floats, booleans and null
// get their natural types, everything else stays a string.
func typedScalar(s string) cty.Value {
	switch s {
	case "true", "True", "TRUE":
		return cty.True
	case "false", "False", "FALSE":
		return cty.False
	case "null", "None", "~":
		return cty.NullVal(cty.DynamicPseudoType)
	}
	if f, ok := new(big.Float).SetString(s); ok && looksNumeric(s) {
		return cty.NumberVal(f)
	}
	return cty.StringVal(s)
}

func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[0] == '-' || s[0] == '+' {
		i++
	}
	digits := false
	for ; i < len(s); i++ {
		switch {
		case s[i] >= '0' && s[i] <= '9':
			digits = true
		case s[i] == '.' || s[i] == 'e' || s[i] == 'E' || s[i] == '-' || s[i] == '+':
			// permitted inside numbers
		default:
			return false
		}
	}
	return digits
}
