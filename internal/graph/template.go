// Package graph reads a synthesized CloudFormation template and renders the resource dependency graph.
package graph

import (
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrCycle = errors.New("resource graph has a cycle")

// Template is the part of a CloudFormation template the graph needs.
type Template struct {
	Resources map[string]Resource
}

type Resource struct {
	Type       string
	DependsOn  []string
	Properties map[string]interface{}
}

// LoadTemplate reads a JSON or YAML template, e.g. cdk.out/FrontendStack.template.json.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading template")
	}
	t, err := ParseTemplate(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing template %s", path)
	}
	return t, nil
}

// ParseTemplate accepts JSON and YAML, including short-form intrinsics such as !Ref and !GetAtt.
func ParseTemplate(data []byte) (*Template, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	doc, ok := decodeNode(&root).(map[string]interface{})
	if !ok {
		return nil, errors.New("template is not a mapping")
	}
	raw, ok := doc["Resources"].(map[string]interface{})
	if !ok {
		return nil, errors.New("template has no Resources section")
	}

	t := &Template{Resources: make(map[string]Resource, len(raw))}
	for id, v := range raw {
		body, ok := v.(map[string]interface{})
		if !ok {
			return nil, errors.Errorf("resource %s is not a mapping", id)
		}
		res := Resource{}
		res.Type, _ = body["Type"].(string)
		res.Properties, _ = body["Properties"].(map[string]interface{})
		switch d := body["DependsOn"].(type) {
		case string:
			res.DependsOn = []string{d}
		case []interface{}:
			for _, item := range d {
				if s, ok := item.(string); ok {
					res.DependsOn = append(res.DependsOn, s)
				}
			}
		}
		t.Resources[id] = res
	}
	return t, nil
}

func decodeNode(n *yaml.Node) interface{} {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil
		}
		return decodeNode(n.Content[0])
	case yaml.AliasNode:
		return decodeNode(n.Alias)
	case yaml.MappingNode:
		m := make(map[string]interface{}, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			m[n.Content[i].Value] = decodeNode(n.Content[i+1])
		}
		return wrapIntrinsic(n, m)
	case yaml.SequenceNode:
		s := make([]interface{}, 0, len(n.Content))
		for _, c := range n.Content {
			s = append(s, decodeNode(c))
		}
		return wrapIntrinsic(n, s)
	}

	if isIntrinsicTag(n.Tag) {
		if n.Tag == "!GetAtt" {
			parts := strings.SplitN(n.Value, ".", 2)
			out := make([]interface{}, len(parts))
			for i, p := range parts {
				out[i] = p
			}
			return map[string]interface{}{"Fn::GetAtt": out}
		}
		return wrapIntrinsic(n, n.Value)
	}
	var v interface{}
	if err := n.Decode(&v); err != nil {
		return n.Value
	}
	return v
}

func isIntrinsicTag(tag string) bool {
	return strings.HasPrefix(tag, "!") && !strings.HasPrefix(tag, "!!")
}

func wrapIntrinsic(n *yaml.Node, v interface{}) interface{} {
	if !isIntrinsicTag(n.Tag) {
		return v
	}
	name := strings.TrimPrefix(n.Tag, "!")
	if name == "Ref" || name == "Condition" {
		return map[string]interface{}{name: v}
	}
	return map[string]interface{}{"Fn::" + name: v}
}

var subVariable = regexp.MustCompile(`\$\{([^!}][^}]*)\}`)

// Dependencies maps every resource to the sorted logical ids it references
// through Ref, Fn::GetAtt, Fn::Sub or DependsOn. Parameters and pseudo parameters are dropped.
func Dependencies(t *Template) map[string][]string {
	deps := make(map[string][]string, len(t.Resources))
	for id, res := range t.Resources {
		found := make(map[string]bool)
		collectRefs(res.Properties, found)
		for _, d := range res.DependsOn {
			found[d] = true
		}

		list := []string{}
		for name := range found {
			if _, ok := t.Resources[name]; ok && name != id {
				list = append(list, name)
			}
		}
		sort.Strings(list)
		deps[id] = list
	}
	return deps
}

func collectRefs(v interface{}, found map[string]bool) {
	switch node := v.(type) {
	case map[string]interface{}:
		if len(node) == 1 {
			if ref, ok := node["Ref"].(string); ok {
				found[ref] = true
				return
			}
			if att, ok := node["Fn::GetAtt"]; ok {
				switch a := att.(type) {
				case []interface{}:
					if len(a) > 0 {
						if name, ok := a[0].(string); ok {
							found[name] = true
						}
					}
				case string:
					found[strings.SplitN(a, ".", 2)[0]] = true
				}
				return
			}
			if sub, ok := node["Fn::Sub"]; ok {
				collectSub(sub, found)
				return
			}
		}
		for _, child := range node {
			collectRefs(child, found)
		}
	case []interface{}:
		for _, child := range node {
			collectRefs(child, found)
		}
	}
}

func collectSub(sub interface{}, found map[string]bool) {
	var text string
	switch s := sub.(type) {
	case string:
		text = s
	case []interface{}:
		if len(s) > 0 {
			text, _ = s[0].(string)
		}
		if len(s) > 1 {
			collectRefs(s[1], found)
		}
	}
	for _, m := range subVariable.FindAllStringSubmatch(text, -1) {
		found[strings.SplitN(m[1], ".", 2)[0]] = true
	}
}

// Order returns the logical ids with every dependency ahead of its dependents.
// Ties are broken alphabetically so the order is stable.
func Order(t *Template) ([]string, error) {
	deps := Dependencies(t)
	pending := make(map[string]int, len(deps))
	dependents := make(map[string][]string)
	for id, ds := range deps {
		pending[id] = len(ds)
		for _, d := range ds {
			dependents[d] = append(dependents[d], id)
		}
	}

	var ready []string
	for id, n := range pending {
		if n == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(deps))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		var next []string
		for _, dependent := range dependents[id] {
			pending[dependent]--
			if pending[dependent] == 0 {
				next = append(next, dependent)
			}
		}
		ready = append(ready, next...)
		sort.Strings(ready)
	}

	if len(order) != len(deps) {
		var stuck []string
		for id, n := range pending {
			if n > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return order, errors.Wrap(ErrCycle, strings.Join(stuck, ", "))
	}
	return order, nil
}
