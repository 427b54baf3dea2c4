package decision

import (
	"bytes"
	"fmt"
	"text/template"
)

const systemPreamble = `You are the %s step of a coding assistant that plans tasks and calls tools.
Respond with a single JSON object and nothing else. It must conform to this JSON Schema:
%s`

var templates = template.Must(template.New("prompts").Parse(`
{{define "plan"}}User request:
{{.UserInput}}
{{if .RetrievedMemory}}
Relevant memory:
{{.RetrievedMemory}}
{{end}}{{if .WorkingMemory}}
Working notes:
{{.WorkingMemory}}
{{end}}
Current plan:{{range .Plan}}
- {{.}}{{else}} (none){{end}}
{{if .ExecutionHistory}}
{{.ExecutionHistory}}
{{end}}{{if .Feedback}}
A reviewer rejected the previous answer:
{{.Feedback}}
{{end}}
Decide whether the request is fully answered. If it is, set isPlanComplete to true and put the answer in finalAnswer.
Otherwise return the remaining plan and pick nextTask from it.{{end}}

{{define "tool_call"}}User request:
{{.UserInput}}

Task to perform:
{{.Task}}

Available tools:{{range .AvailableTools}}
- {{.Name}}{{if .Description}}: {{.Description}}{{end}}{{else}} (none){{end}}

Choose exactly one tool and its parameters.{{end}}

{{define "correction"}}User request:
{{.UserInput}}

Current plan:{{range .Plan}}
- {{.}}{{else}} (none){{end}}

Failed task: {{if .FailedTask}}{{.FailedTask}}{{else}}(none){{end}}
Error:
{{.Error}}
{{if .ExecutionHistory}}
{{.ExecutionHistory}}
{{end}}
Choose retry to attempt the same step again, modify_plan with a non-empty newPlan to replace the plan,
or continue to abandon the failed step.{{end}}

{{define "validation"}}User request:
{{.UserInput}}

Proposed final answer:
{{.FinalAnswer}}
{{if .History}}
{{.History}}
{{end}}
Judge whether the answer fully and correctly addresses the request. When it does not, explain what is missing in feedback.{{end}}
`))

func render(kind Kind, data any) (Prompt, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(kind), data); err != nil {
		return Prompt{}, fmt.Errorf("render %s prompt: %w", kind, err)
	}
	return Prompt{
		Kind:   kind,
		System: fmt.Sprintf(systemPreamble, roleName(kind), schemaText(kind)),
		User:   buf.String(),
	}, nil
}

func roleName(kind Kind) string {
	switch kind {
	case KindPlan:
		return "planning"
	case KindToolCall:
		return "tool selection"
	case KindCorrection:
		return "error correction"
	default:
		return "answer review"
	}
}

// repairNote is appended to a prompt after a defective answer.
func repairNote(raw string, defect error) string {
	return fmt.Sprintf("\n\nYour previous answer was rejected.\nAnswer:\n%s\nProblem: %v\nReturn a corrected JSON object.", raw, defect)
}
