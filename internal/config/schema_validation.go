package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	tetherschema "github.com/Paintersrp/tether/schema"
)

const schemaResource = "tether.v1.json"

var (
	schemaOnce     sync.Once
	manifestSchema *jsonschema.Schema
	schemaErr      error

	quotedName = regexp.MustCompile(`'((?:[^'\\]|\\.)*)'`)
)

// SchemaIssue is one schema violation, located by manifest field path.
type SchemaIssue struct {
	Field   string
	Message string
}

// SchemaError reports every schema violation of a manifest, sorted by field.
type SchemaError struct {
	Issues []SchemaIssue
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("schema validation failed:")
	for _, issue := range e.Issues {
		fmt.Fprintf(&b, "\n  - %s: %s", issue.Field, issue.Message)
	}
	return b.String()
}

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(schemaResource, bytes.NewReader(tetherschema.ManifestV1)); err != nil {
			schemaErr = fmt.Errorf("add manifest schema resource: %w", err)
			return
		}
		manifestSchema, schemaErr = compiler.Compile(schemaResource)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile manifest schema: %w", schemaErr)
		}
	})
	return manifestSchema, schemaErr
}

func validateAgainstSchema(raw map[string]any) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	doc, err := jsonValue(raw)
	if err != nil {
		return fmt.Errorf("prepare manifest for schema validation: %w", err)
	}

	err = schema.Validate(doc)
	if err == nil {
		return nil
	}
	vErr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return &SchemaError{Issues: collectIssues(raw, vErr)}
}

// jsonValue converts a yaml.v3 document into the value model the schema
// validator expects: string keys, json.Number for numbers.
func jsonValue(v any) (any, error) {
	switch val := v.(type) {
	case nil, bool, string:
		return val, nil
	case int:
		return json.Number(strconv.Itoa(val)), nil
	case int64:
		return json.Number(strconv.FormatInt(val, 10)), nil
	case uint64:
		return json.Number(strconv.FormatUint(val, 10)), nil
	case float64:
		return json.Number(strconv.FormatFloat(val, 'g', -1, 64)), nil
	case time.Time:
		return val.Format(time.RFC3339Nano), nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			conv, err := jsonValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			conv, err := jsonValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = conv
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			conv, err := jsonValue(item)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(k)] = conv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}

// collectIssues flattens the validator's cause tree into its leaves, the only
// nodes that name a concrete problem.
func collectIssues(raw map[string]any, root *jsonschema.ValidationError) []SchemaIssue {
	seen := make(map[SchemaIssue]bool)
	var issues []SchemaIssue
	var walk func(*jsonschema.ValidationError)
	walk = func(err *jsonschema.ValidationError) {
		if len(err.Causes) > 0 {
			for _, cause := range err.Causes {
				walk(cause)
			}
			return
		}
		issue := SchemaIssue{
			Field:   fieldFromPointer(err.InstanceLocation),
			Message: describeViolation(err.Message) + processSuffix(raw, err.InstanceLocation),
		}
		if !seen[issue] {
			seen[issue] = true
			issues = append(issues, issue)
		}
	}
	walk(root)

	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Field < issues[j].Field
	})
	return issues
}

// describeViolation rewords the validator messages manifest authors hit most.
func describeViolation(msg string) string {
	switch {
	case strings.HasPrefix(msg, "additionalProperties "):
		if names := quotedNames(msg); len(names) > 0 {
			return "unknown field " + strings.Join(names, ", ")
		}
	case strings.HasPrefix(msg, "missing properties: "):
		if names := quotedNames(msg); len(names) > 0 {
			return "missing required field " + strings.Join(names, ", ")
		}
	}
	return msg
}

func quotedNames(msg string) []string {
	matches := quotedName.FindAllStringSubmatch(msg, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strconv.Quote(strings.ReplaceAll(m[1], `\'`, `'`)))
	}
	sort.Strings(names)
	return names
}

func pointerSegments(ptr string) []string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return nil
	}
	segments := strings.Split(ptr, "/")
	for i, segment := range segments {
		segments[i] = strings.ReplaceAll(strings.ReplaceAll(segment, "~1", "/"), "~0", "~")
	}
	return segments
}

func fieldFromPointer(ptr string) string {
	segments := pointerSegments(ptr)
	if len(segments) == 0 {
		return "manifest"
	}
	var b strings.Builder
	for _, segment := range segments {
		if _, err := strconv.Atoi(segment); err == nil {
			fmt.Fprintf(&b, "[%s]", segment)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(segment)
	}
	return b.String()
}

// processSuffix names the declared process an issue belongs to.
func processSuffix(raw map[string]any, ptr string) string {
	segments := pointerSegments(ptr)
	if len(segments) < 2 || segments[0] != "processes" {
		return ""
	}
	idx, err := strconv.Atoi(segments[1])
	if err != nil {
		return ""
	}
	procs, _ := raw["processes"].([]any)
	if idx < 0 || idx >= len(procs) {
		return ""
	}
	proc, _ := procs[idx].(map[string]any)
	name, _ := proc["name"].(string)
	if name == "" || (len(segments) > 2 && segments[2] == "name") {
		return ""
	}
	return fmt.Sprintf(" (process %q)", name)
}
