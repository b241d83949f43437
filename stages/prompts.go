package stages

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ryzeai/ryze/plan"
)

// componentSummary is the planner's view of a catalog entry.
type componentSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Props       []string `json:"props"`
}

// componentDoc is the generator's view of a catalog entry.
type componentDoc struct {
	Name          string                     `json:"name"`
	Props         map[string]Prop            `json:"props,omitempty"`
	SubComponents []string                   `json:"subComponents,omitempty"`
	Parts         []string                   `json:"components,omitempty"`
	PartProps     map[string]map[string]Prop `json:"partProps,omitempty"`
	Example       string                     `json:"example"`
}

// indentJSON renders v for a prompt. HTML is left unescaped so JSX
// examples stay readable.
func indentJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		// Only catalog and plan values reach here; both always marshal.
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

const planOutputFormat = "```json" + `
{
  "layout": "Description of the layout",
  "reasoning": "Why you chose these components and layout",
  "structure": [
    {
      "component": "ComponentName",
      "props": {},
      "children": []
    }
  ]
}
` + "```"

// plannerSystemPrompt describes the planner's job, the components it may use
// and the JSON it must return.
func plannerSystemPrompt(cat *Catalog) string {
	summary := make([]componentSummary, 0, len(cat.components))
	for _, c := range cat.components {
		summary = append(summary, componentSummary{
			Name:        c.Name,
			Description: c.Description,
			Props:       c.PropNames(),
		})
	}

	return `You are a UI Planner. Your goal is to create or modify a high-level layout plan for a user interface.

## Available Components (Strictly Limited)

` + indentJSON(summary) + `

## Output Format (JSON Only)

` + planOutputFormat + `

"structure" is recursive: "children" is either a list of components or a plain string.
Do not include any explanations outside the JSON.`
}

// plannerUserPrompt asks for a new plan, or for a modification of previous
// when there is one.
func plannerUserPrompt(intent string, previous *plan.Plan) string {
	if previous == nil {
		return fmt.Sprintf(`User Intent: %q

Your task is to create a NEW UI Plan based on the User Intent.`, intent)
	}

	return fmt.Sprintf(`Current UI Plan:
%s

User Change Request: %q

Your task is to MODIFY the Current UI Plan based on the User Change Request.
- Keep existing components unless the user explicitly asks to remove or change them.
- Add new components where requested.
- Update props if requested (e.g., "make button red" -> variant="destructive").`, indentJSON(previous), intent)
}

// planCorrectionPrompt feeds a parse failure back to the planner.
func planCorrectionPrompt(err error) string {
	return fmt.Sprintf(
		"Your response could not be parsed as a UI plan. Error: %s\n\n"+
			"Please respond with ONLY a valid JSON object matching this structure:\n%s",
		err.Error(), planOutputFormat)
}

// generatorPrompt asks for a single App component rendering p.
func generatorPrompt(cat *Catalog, p *plan.Plan) string {
	docs := make([]componentDoc, 0, len(cat.components))
	for _, c := range cat.components {
		docs = append(docs, componentDoc{
			Name:          c.Name,
			Props:         c.Props,
			SubComponents: c.SubComponents,
			Parts:         c.Parts,
			PartProps:     c.PartProps,
			Example:       c.Example,
		})
	}

	return `You are a UI Generator. Your goal is to convert a UI Plan into valid, executable React code.

## UI Plan

` + indentJSON(p) + `

## Available Components (Documentation)

` + indentJSON(docs) + `

## Allowed Tags

` + strings.Join(cat.AllowedTags(), ", ") + `

## Constraints

1. Use ONLY the provided components. Do not invent new ones.
2. Do NOT use standard HTML tags (div, span, etc.) unless absolutely necessary for layout within a Component's children, but prefer using "Container", "Grid", "Flex" from the registry.
3. You can use standard Tailwind CSS classes for 'className' prop if needed for minor adjustments, but rely on component props (variant, size) first.
4. The output must be a single functional React component named 'App'.
5. Do not include imports. Assume all components are available in the scope.
6. Return ONLY the code, no markdown formatting.

## Example Output

function App() {
  return (
    <Container>
      <Button>Click Me</Button>
    </Container>
  )
}`
}

// explainerPrompt asks for a two or three sentence summary of the change.
func explainerPrompt(p *plan.Plan, intent string) string {
	return fmt.Sprintf(`You are a UI Explainer. Your goal is to briefly explain the UI changes based on the user's request.

User Intent: %q

UI Plan Summary:
Layout: %s
Reasoning: %s

Instructions:
1. If this is a modification (e.g., changing color, size), ONLY explain the specific change.
2. Do NOT list all components or layout details unless they are new or complex.
3. Keep it extremely concise (max 2-3 sentences).
4. Speak directly to the user (e.g., "I've updated the button color...").`, intent, p.Layout, p.Reasoning)
}
