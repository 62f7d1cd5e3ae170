package graph

import (
	"io"
	"sort"
	"strings"

	"github.com/emicklei/dot"
)

type Format string

const (
	FormatDOT     Format = "dot"
	FormatMermaid Format = "mermaid"
)

// Generator renders a template's dependency graph. Edges point from a resource to what it needs.
type Generator struct {
	// Format defaults to dot.
	Format Format

	// ClusterByService groups resources of the same AWS service, e.g. S3 or CloudFront.
	ClusterByService bool
}

func (g *Generator) Generate(t *Template, w io.Writer) error {
	graph := g.buildGraph(t)

	var output string
	if g.Format == FormatMermaid {
		output = dot.MermaidGraph(graph, dot.MermaidTopToBottom)
	} else {
		output = graph.String()
	}

	_, err := io.WriteString(w, output)
	return err
}

func (g *Generator) GenerateString(t *Template) (string, error) {
	var sb strings.Builder
	if err := g.Generate(t, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (g *Generator) buildGraph(t *Template) *dot.Graph {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "TB")
	graph.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})

	ids := make([]string, 0, len(t.Resources))
	for id := range t.Resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	nodes := make(map[string]dot.Node, len(ids))
	clusters := make(map[string]*dot.Graph)
	for _, id := range ids {
		res := t.Resources[id]
		parent := graph
		if g.ClusterByService {
			service := Service(res.Type)
			cluster, ok := clusters[service]
			if !ok {
				cluster = graph.Subgraph(service, dot.ClusterOption{})
				cluster.Attr("label", service)
				cluster.Attr("style", "rounded")
				clusters[service] = cluster
			}
			parent = cluster
		}
		n := parent.Node(id)
		n.Label(id + "\\n[" + res.Type + "]")
		nodes[id] = n
	}

	deps := Dependencies(t)
	for _, id := range ids {
		for _, dep := range deps[id] {
			e := graph.Edge(nodes[id], nodes[dep])
			if contains(t.Resources[id].DependsOn, dep) {
				e.Attr("style", "dashed")
			}
		}
	}
	return graph
}

// Service extracts the service segment of a resource type: AWS::S3::Bucket gives S3,
// Custom::CDKBucketDeployment gives Custom.
func Service(resourceType string) string {
	parts := strings.Split(resourceType, "::")
	switch {
	case len(parts) >= 3:
		return parts[1]
	case len(parts) == 2:
		return parts[0]
	}
	return "Other"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
