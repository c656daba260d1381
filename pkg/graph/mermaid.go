package graph

import (
	"fmt"
	"strings"
)

// Overlay marks dynamic state on a rendered graph.
type Overlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// Mermaid renders the graph as a Mermaid flowchart.
//
// Shapes:
//   - Entry: ((Circle))
//   - Fork: [[Subroutine]]
//   - End: (((Double circle)))
//   - Default: [Rectangle]
func (g *Graph) Mermaid(overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, name := range g.order {
		opener, closer := "[", "]"
		if name == g.entry {
			opener, closer = "((", "))"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(name), opener, name, closer)
	}
	for _, name := range g.Forks() {
		fmt.Fprintf(&sb, "    %s[[\"%s\"]]\n", sanitizeMermaidID(name), name)
	}
	fmt.Fprintf(&sb, "    %s(((\"END\")))\n", sanitizeMermaidID(End))

	for _, e := range g.Edges() {
		arrow := "-->"
		if e.Conditional {
			arrow = "-.->"
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(e.From), arrow, sanitizeMermaidID(e.To))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !seen[safeID] && safeID != "" {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_")
	return r.Replace(id)
}
