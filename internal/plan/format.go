package plan

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatText produces the human-readable plan output.
func FormatText(p *Plan) string {
	if p.Empty() {
		return "No changes. Deployment is up-to-date.\n"
	}

	creates, updates, deletes := p.Counts()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Plan for stage %q: %d to create, %d to update, %d to delete\n\n",
		p.Stage, creates, updates, deletes)

	for _, in := range p.Instructions {
		switch in.Op {
		case OpCreate:
			fmt.Fprintf(&sb, "  + %s\n", in.ID)
		case OpUpdate:
			fmt.Fprintf(&sb, "  ~ %s\n", in.ID)
		case OpDelete:
			fmt.Fprintf(&sb, "  - %s\n", in.ID)
		}
	}
	return sb.String()
}

// FormatJSON produces a machine-readable plan output.
func FormatJSON(p *Plan) (string, error) {
	type jsonInstruction struct {
		ID        string   `json:"id"`
		Op        string   `json:"op"`
		DependsOn []string `json:"depends_on,omitempty"`
		Reason    string   `json:"reason,omitempty"`
	}
	type jsonPlan struct {
		Stage        string            `json:"stage"`
		Instructions []jsonInstruction `json:"instructions"`
	}

	out := jsonPlan{Stage: p.Stage, Instructions: []jsonInstruction{}}
	for _, in := range p.Instructions {
		out.Instructions = append(out.Instructions, jsonInstruction{
			ID:        in.ID,
			Op:        string(in.Op),
			DependsOn: in.DependsOn,
			Reason:    in.Reason,
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}
