package template

import (
	"encoding/base64"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	ctyyaml "github.com/zclconf/go-cty-yaml"
)

// filterFunc applies one pipe filter: the piped value plus any call
// arguments, left-to-right chaining handled by the evaluator.
type filterFunc func(target cty.Value, args []cty.Value) (cty.Value, error)

// filters is the builtin filter table. `default` is not here; it needs the
// evaluator's error-recovery semantics and lives in eval.go.
var filters = map[string]filterFunc{
	"to_json":       filterToJSON,
	"from_json":     filterFromJSON,
	"from_yaml":     filterFromYAML,
	"b64encode":     filterB64Encode,
	"b64decode":     filterB64Decode,
	"join":          filterJoin,
	"regex_replace": filterRegexReplace,
	"upper":         filterUpper,
	"lower":         filterLower,
	"length":        filterLength,
	"count":         filterLength,
	"int":           filterInt,
	"bool":          filterBool,
}

func filterNames() []string {
	names := make([]string, 0, len(filters)+1)
	for name := range filters {
		names = append(names, name)
	}
	names = append(names, "default")
	sort.Strings(names)
	return names
}

func filterToJSON(target cty.Value, args []cty.Value) (cty.Value, error) {
	v, err := stdlib.JSONEncode(target)
	if err != nil {
		return cty.NilVal, evalFailure{msg: "to_json: " + err.Error()}
	}
	return v, nil
}

func filterFromJSON(target cty.Value, args []cty.Value) (cty.Value, error) {
	if target.Type() != cty.String || target.IsNull() {
		return cty.NilVal, evalFailure{msg: "from_json requires a string"}
	}
	v, err := stdlib.JSONDecode(target)
	if err != nil {
		return cty.NilVal, evalFailure{msg: "from_json: " + err.Error()}
	}
	return v, nil
}

func filterFromYAML(target cty.Value, args []cty.Value) (cty.Value, error) {
	if target.Type() != cty.String || target.IsNull() {
		return cty.NilVal, evalFailure{msg: "from_yaml requires a string"}
	}
	src := []byte(target.AsString())
	ty, err := ctyyaml.Standard.ImpliedType(src)
	if err != nil {
		return cty.NilVal, evalFailure{msg: "from_yaml: " + err.Error()}
	}
	v, err := ctyyaml.Standard.Unmarshal(src, ty)
	if err != nil {
		return cty.NilVal, evalFailure{msg: "from_yaml: " + err.Error()}
	}
	return v, nil
}

func filterB64Encode(target cty.Value, args []cty.Value) (cty.Value, error) {
	s, err := toString(target)
	if err != nil {
		return cty.NilVal, evalFailure{msg: "b64encode: " + err.Error()}
	}
	return cty.StringVal(base64.StdEncoding.EncodeToString([]byte(s))), nil
}

func filterB64Decode(target cty.Value, args []cty.Value) (cty.Value, error) {
	s, err := toString(target)
	if err != nil {
		return cty.NilVal, evalFailure{msg: "b64decode: " + err.Error()}
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return cty.NilVal, evalFailure{msg: "b64decode: " + err.Error()}
	}
	return cty.StringVal(string(raw)), nil
}

func filterJoin(target cty.Value, args []cty.Value) (cty.Value, error) {
	sep := cty.StringVal("")
	if len(args) > 0 {
		sep = args[0]
	}
	list, err := convert.Convert(target, cty.List(cty.String))
	if err != nil {
		return cty.NilVal, evalFailure{msg: "join requires a sequence of stringable values"}
	}
	v, err := stdlib.Join(sep, list)
	if err != nil {
		return cty.NilVal, evalFailure{msg: "join: " + err.Error()}
	}
	return v, nil
}

func filterRegexReplace(target cty.Value, args []cty.Value) (cty.Value, error) {
	if len(args) < 2 {
		return cty.NilVal, evalFailure{msg: "regex_replace requires a pattern and a replacement"}
	}
	s, err := toString(target)
	if err != nil {
		return cty.NilVal, evalFailure{msg: "regex_replace: " + err.Error()}
	}
	v, err := stdlib.RegexReplace(cty.StringVal(s), args[0], args[1])
	if err != nil {
		return cty.NilVal, evalFailure{msg: "regex_replace: " + err.Error()}
	}
	return v, nil
}

func filterUpper(target cty.Value, args []cty.Value) (cty.Value, error) {
	s, err := toString(target)
	if err != nil {
		return cty.NilVal, evalFailure{msg: "upper: " + err.Error()}
	}
	v, err := stdlib.Upper(cty.StringVal(s))
	if err != nil {
		return cty.NilVal, evalFailure{msg: "upper: " + err.Error()}
	}
	return v, nil
}

func filterLower(target cty.Value, args []cty.Value) (cty.Value, error) {
	s, err := toString(target)
	if err != nil {
		return cty.NilVal, evalFailure{msg: "lower: " + err.Error()}
	}
	v, err := stdlib.Lower(cty.StringVal(s))
	if err != nil {
		return cty.NilVal, evalFailure{msg: "lower: " + err.Error()}
	}
	return v, nil
}

func filterLength(target cty.Value, args []cty.Value) (cty.Value, error) {
	if target.Type() == cty.String && !target.IsNull() {
		return stdlib.Strlen(target)
	}
	v, err := stdlib.Length(target)
	if err != nil {
		return cty.NilVal, evalFailure{msg: "length: " + err.Error()}
	}
	return v, nil
}

func filterInt(target cty.Value, args []cty.Value) (cty.Value, error) {
	if num, ok := toNumber(target); ok {
		i, _ := num.AsBigFloat().Int64()
		return cty.NumberIntVal(i), nil
	}
	if len(args) > 0 {
		return args[0], nil
	}
	return cty.Zero, nil
}

func filterBool(target cty.Value, args []cty.Value) (cty.Value, error) {
	if b, ok := looseBool(target); ok {
		return cty.BoolVal(b), nil
	}
	return cty.BoolVal(looseTruth(target)), nil
}
