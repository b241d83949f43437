// Package stages implements the LLM-backed planner, generator and explainer
// that the pipeline orchestrator runs, together with the component catalog
// they are constrained to.
package stages

import (
	"slices"

	"github.com/ryzeai/ryze/plan"
)

// Prop documents one property of a catalog component.
type Prop struct {
	Type        string `json:"type"`
	Options     []any  `json:"options,omitempty"`
	Default     any    `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

// Component is one entry of the catalog. A component may stand for a family
// of tags (Parts), each with its own props in PartProps.
type Component struct {
	Name          string                     `json:"name"`
	Description   string                     `json:"description"`
	Props         map[string]Prop            `json:"props,omitempty"`
	SubComponents []string                   `json:"subComponents,omitempty"`
	Parts         []string                   `json:"components,omitempty"`
	PartProps     map[string]map[string]Prop `json:"partProps,omitempty"`
	Example       string                     `json:"example"`
}

// PropNames returns the sorted names of the component's props, including
// those of its parts.
func (c Component) PropNames() []string {
	var names []string
	for name := range c.Props {
		names = append(names, name)
	}
	for _, props := range c.PartProps {
		for name := range props {
			if !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
	}
	slices.Sort(names)
	return names
}

// Catalog is the fixed set of components generated UIs may use.
type Catalog struct {
	components []Component
	htmlTags   []string
}

// Components returns the catalog entries in display order.
func (c *Catalog) Components() []Component {
	return slices.Clone(c.components)
}

// Lookup returns the entry whose name, sub-component or part is tag.
func (c *Catalog) Lookup(tag string) (Component, bool) {
	for _, comp := range c.components {
		if comp.Name == tag || slices.Contains(comp.SubComponents, tag) || slices.Contains(comp.Parts, tag) {
			return comp, true
		}
	}
	return Component{}, false
}

// AllowedTags lists every tag generated code may use: a small set of plain
// HTML tags followed by the component names.
func (c *Catalog) AllowedTags() []string {
	tags := slices.Clone(c.htmlTags)
	for _, comp := range c.components {
		switch {
		case len(comp.Parts) > 0:
			tags = append(tags, comp.Parts...)
			continue
		case comp.Name == "Modal":
			// Modal renders as Dialog.
			tags = append(tags, "Dialog")
		default:
			tags = append(tags, comp.Name)
		}
		tags = append(tags, comp.SubComponents...)
	}
	return tags
}

// Unknown returns the plan's component names that are not allowed tags.
func (c *Catalog) Unknown(p *plan.Plan) []string {
	allowed := c.AllowedTags()
	var unknown []string
	for _, name := range p.Components() {
		if _, ok := c.Lookup(name); ok || slices.Contains(allowed, name) {
			continue
		}
		unknown = append(unknown, name)
	}
	return unknown
}

var sizeOptions = []any{"default", "sm", "lg", "icon"}

// DefaultCatalog returns the built-in component catalog.
func DefaultCatalog() *Catalog {
	return &Catalog{
		htmlTags: []string{
			"div", "span", "p", "h1", "h2", "h3", "h4", "h5", "h6",
			"ul", "ol", "li", "a", "img", "form",
		},
		components: []Component{
			{
				Name:        "Button",
				Description: "Trigger an action or event, such as submitting a form or opening a dialog.",
				Props: map[string]Prop{
					"variant":  {Type: "string", Options: []any{"default", "destructive", "outline", "secondary", "ghost", "link"}, Default: "default"},
					"size":     {Type: "string", Options: sizeOptions, Default: "default"},
					"children": {Type: "string | ReactNode", Description: "The content of the button"},
					"onClick":  {Type: "function", Description: "Function to call when clicked"},
				},
				Example: `<Button variant="default">Click Me</Button>`,
			},
			{
				Name:        "Input",
				Description: "Displays a form input field or a component that looks like an input field.",
				Props: map[string]Prop{
					"type":        {Type: "string", Options: []any{"text", "password", "email", "number"}, Default: "text"},
					"placeholder": {Type: "string", Description: "Placeholder text"},
					"value":       {Type: "string", Description: "Current value"},
					"onChange":    {Type: "function", Description: "Change handler"},
				},
				Example: `<Input placeholder="Enter your email" />`,
			},
			{
				Name:          "Card",
				Description:   "A container for content with a header, content, and footer.",
				Props:         map[string]Prop{"children": {Type: "ReactNode", Description: "Card subcomponents (CardHeader, CardContent, etc.)"}},
				SubComponents: []string{"CardHeader", "CardTitle", "CardDescription", "CardContent", "CardFooter"},
				Example: `<Card>
  <CardHeader>
    <CardTitle>Card Title</CardTitle>
    <CardDescription>Card Description</CardDescription>
  </CardHeader>
  <CardContent>
    <p>Card Content</p>
  </CardContent>
  <CardFooter>
    <p>Card Footer</p>
  </CardFooter>
</Card>`,
			},
			{
				Name:          "Table",
				Description:   "A responsive table component.",
				Props:         map[string]Prop{"children": {Type: "ReactNode", Description: "Table subcomponents (TableHeader, TableBody, TableRow, TableCell, etc.)"}},
				SubComponents: []string{"TableHeader", "TableBody", "TableFooter", "TableHead", "TableRow", "TableCell", "TableCaption"},
				Example: `<Table>
  <TableHeader>
    <TableRow>
      <TableHead>Header 1</TableHead>
      <TableHead>Header 2</TableHead>
    </TableRow>
  </TableHeader>
  <TableBody>
    <TableRow>
      <TableCell>Cell 1</TableCell>
      <TableCell>Cell 2</TableCell>
    </TableRow>
  </TableBody>
</Table>`,
			},
			{
				Name:        "Modal",
				Description: "A modal dialog overlay.",
				Props: map[string]Prop{
					"open":         {Type: "boolean"},
					"onOpenChange": {Type: "function"},
					"children":     {Type: "ReactNode"},
				},
				SubComponents: []string{"DialogTrigger", "DialogContent", "DialogHeader", "DialogTitle", "DialogDescription", "DialogFooter"},
				Example: `<Dialog>
  <DialogTrigger asChild>
    <Button>Open Modal</Button>
  </DialogTrigger>
  <DialogContent>
    <DialogHeader>
      <DialogTitle>Modal Title</DialogTitle>
      <DialogDescription>Modal Description</DialogDescription>
    </DialogHeader>
    <div>Modal Content</div>
  </DialogContent>
</Dialog>`,
			},
			{
				Name:          "Navbar",
				Description:   "A top navigation bar.",
				Props:         map[string]Prop{"children": {Type: "ReactNode"}},
				SubComponents: []string{"NavbarBrand", "NavbarContent", "NavbarItem"},
				Example: `<Navbar>
  <NavbarBrand>Brand</NavbarBrand>
  <NavbarContent>
    <NavbarItem>Home</NavbarItem>
  </NavbarContent>
</Navbar>`,
			},
			{
				Name:          "Sidebar",
				Description:   "A side navigation bar.",
				Props:         map[string]Prop{"children": {Type: "ReactNode"}},
				SubComponents: []string{"SidebarHeader", "SidebarContent", "SidebarFooter"},
				Example: `<Sidebar>
  <SidebarHeader>Header</SidebarHeader>
  <SidebarContent>Content</SidebarContent>
  <SidebarFooter>Footer</SidebarFooter>
</Sidebar>`,
			},
			{
				Name:        "Chart",
				Description: "A data visualization chart (Mock).",
				Props:       map[string]Prop{"type": {Type: "string", Options: []any{"bar", "line", "pie"}, Default: "bar"}},
				Example:     `<Chart type="bar" />`,
			},
			{
				Name:        "Layout",
				Description: "Layout primitives: Container, Grid, Flex.",
				Parts:       []string{"Container", "Grid", "Flex"},
				PartProps: map[string]map[string]Prop{
					"Flex": {
						"direction": {Type: "string", Options: []any{"row", "column"}, Default: "row"},
						"align":     {Type: "string", Options: []any{"start", "center", "end", "stretch"}, Default: "start"},
						"justify":   {Type: "string", Options: []any{"start", "center", "end", "between"}, Default: "start"},
						"gap":       {Type: "string", Description: "Gap between items (e.g., '1rem')"},
					},
					"Grid": {
						"columns": {Type: "number", Options: []any{1, 2, 3, 4, 6, 12}, Default: 1},
						"gap":     {Type: "string", Description: "Gap between items"},
					},
				},
				Example: `<Container>
  <Grid columns={2}>
    <Flex direction="column" gap="1rem">Item 1</Flex>
    <Flex direction="column" align="center">Item 2</Flex>
  </Grid>
</Container>`,
			},
		},
	}
}
