package knowledge

// BuiltinSource names the hard-coded fallback knowledge base.
const BuiltinSource = "builtin"

// Builtin returns the minimal knowledge base used when no source can be loaded.
func Builtin() *KnowledgeBase {
	kb, err := New(builtinDocument(), BuiltinSource)
	if err != nil {
		// the literal below is covered by tests
		panic("invalid builtin knowledge: " + err.Error())
	}
	return kb
}

func num(name, nick string) PortSpec {
	return PortSpec{Name: name, Nickname: nick, Type: "Number"}
}

func slider(id string, x, y, min, max, value float64) TemplateNode {
	return TemplateNode{
		ID: id, Type: "Number Slider", X: x, Y: y,
		Settings: map[string]any{"min": min, "max": max, "value": value},
	}
}

func builtinDocument() Document {
	return Document{
		Components: []ComponentSpec{
			{
				Name: "Number Slider", Category: "Params", Subcategory: "Input",
				Description: "Numeric slider for single values",
				Outputs:     []PortSpec{num("N", "N")},
				Defaults:    map[string]any{"min": 0.0, "max": 10.0, "value": 5.0, "rounding": 0.1},
			},
			{
				Name: "Panel", Category: "Params", Subcategory: "Input",
				Description: "Displays text or numeric data",
				Inputs:      []PortSpec{{Name: "Input", Nickname: "I", Type: "Any"}},
			},
			{
				Name: "XY Plane", Category: "Vector", Subcategory: "Plane",
				Description: "World XY plane, optionally moved to an origin",
				Inputs:      []PortSpec{{Name: "Origin", Nickname: "O", Type: "Point", Optional: true}},
				Outputs:     []PortSpec{{Name: "Plane", Nickname: "P", Type: "Plane"}},
			},
			{
				Name: "Circle", Category: "Curve", Subcategory: "Primitive",
				Description: "Circle defined by a base plane and a radius",
				Inputs:      []PortSpec{{Name: "Plane", Nickname: "P", Type: "Plane"}, num("Radius", "R")},
				Outputs:     []PortSpec{{Name: "Circle", Nickname: "C", Type: "Circle"}},
			},
			{
				Name: "CircleParam", Category: "Params", Subcategory: "Geometry",
				Description: "Container for circle data",
				Inputs:      []PortSpec{{Name: "Circle", Nickname: "C", Type: "Circle"}},
				Outputs:     []PortSpec{{Name: "Circle", Nickname: "C", Type: "Circle"}},
			},
			{
				Name: "Addition", Category: "Maths", Subcategory: "Operators",
				Description: "Adds two numbers",
				Inputs:      []PortSpec{num("A", "A"), num("B", "B")},
				Outputs:     []PortSpec{num("Result", "R")},
			},
			{
				Name: "Construct Point", Category: "Vector", Subcategory: "Point",
				Description: "Point from X, Y and Z coordinates",
				Inputs:      []PortSpec{num("X", "X"), num("Y", "Y"), num("Z", "Z")},
				Outputs:     []PortSpec{{Name: "Point", Nickname: "Pt", Type: "Point"}},
			},
			{
				Name: "Line", Category: "Curve", Subcategory: "Primitive",
				Description: "Line between two points",
				Inputs:      []PortSpec{{Name: "Start", Nickname: "A", Type: "Point"}, {Name: "End", Nickname: "B", Type: "Point"}},
				Outputs:     []PortSpec{{Name: "Line", Nickname: "L", Type: "Line"}},
			},
			{
				Name: "Unit Z", Category: "Vector", Subcategory: "Vector",
				Description: "Unit vector parallel to the world Z axis",
				Inputs:      []PortSpec{num("Factor", "F")},
				Outputs:     []PortSpec{{Name: "Unit vector", Nickname: "V", Type: "Vector"}},
			},
			{
				Name: "Extrude", Category: "Surface", Subcategory: "Freeform",
				Description: "Extrudes a curve or surface along a vector",
				Inputs:      []PortSpec{{Name: "Base", Nickname: "B", Type: "Geometry"}, {Name: "Direction", Nickname: "D", Type: "Vector"}},
				Outputs:     []PortSpec{{Name: "Extrusion", Nickname: "E", Type: "Brep"}},
			},
			{
				Name: "Center Box", Category: "Surface", Subcategory: "Primitive",
				Description: "Box centered on a plane",
				Inputs:      []PortSpec{{Name: "Base", Nickname: "B", Type: "Plane"}, num("X", "X"), num("Y", "Y"), num("Z", "Z")},
				Outputs:     []PortSpec{{Name: "Box", Nickname: "B", Type: "Brep"}},
			},
			{
				Name: "Divide Curve", Category: "Curve", Subcategory: "Division",
				Description: "Divides a curve into equal length segments",
				Inputs: []PortSpec{
					{Name: "Curve", Nickname: "C", Type: "Curve"},
					{Name: "Count", Nickname: "N", Type: "Integer"},
					{Name: "Kinks", Nickname: "K", Type: "Boolean", Optional: true},
				},
				Outputs: []PortSpec{
					{Name: "Points", Nickname: "P", Type: "Point"},
					{Name: "Tangents", Nickname: "T", Type: "Vector"},
					{Name: "Parameters", Nickname: "t", Type: "Number"},
				},
			},
			{
				Name: "Move", Category: "Transform", Subcategory: "Euclidean",
				Description: "Translates geometry along a vector",
				Inputs:      []PortSpec{{Name: "Geometry", Nickname: "G", Type: "Geometry"}, {Name: "Motion", Nickname: "T", Type: "Vector"}},
				Outputs:     []PortSpec{{Name: "Geometry", Nickname: "G", Type: "Geometry"}, {Name: "Transform", Nickname: "X", Type: "Transform"}},
			},
		},
		Patterns: []Pattern{
			{
				Name:        "Circle",
				Description: "Circle on the XY plane with a radius slider",
				Nodes: []TemplateNode{
					{ID: "plane", Type: "XY Plane", X: 0, Y: 0},
					slider("radius", 0, 80, 1, 20, 5),
					{ID: "circle", Type: "Circle", X: 220, Y: 40},
				},
				Edges: []TemplateEdge{
					{Source: "plane", SourcePort: "Plane", Target: "circle", TargetPort: "Plane"},
					{Source: "radius", SourcePort: "N", Target: "circle", TargetPort: "Radius"},
				},
			},
			{
				Name:        "Addition",
				Description: "Two sliders added together and shown in a panel",
				Nodes: []TemplateNode{
					slider("a", 0, 0, 0, 10, 2),
					slider("b", 0, 60, 0, 10, 3),
					{ID: "add", Type: "Addition", X: 220, Y: 30},
					{ID: "panel", Type: "Panel", X: 400, Y: 30},
				},
				Edges: []TemplateEdge{
					{Source: "a", SourcePort: "N", Target: "add", TargetPort: "A"},
					{Source: "b", SourcePort: "N", Target: "add", TargetPort: "B"},
					{Source: "add", SourcePort: "Result", Target: "panel", TargetPort: "Input"},
				},
			},
			{
				Name:        "Line",
				Description: "Line between the origin and a point moved along X",
				Nodes: []TemplateNode{
					{ID: "start", Type: "Construct Point", X: 200, Y: 0},
					slider("length", 0, 80, 1, 100, 10),
					{ID: "end", Type: "Construct Point", X: 200, Y: 80},
					{ID: "line", Type: "Line", X: 400, Y: 40},
				},
				Edges: []TemplateEdge{
					{Source: "length", SourcePort: "N", Target: "end", TargetPort: "X"},
					{Source: "start", SourcePort: "Point", Target: "line", TargetPort: "Start"},
					{Source: "end", SourcePort: "Point", Target: "line", TargetPort: "End"},
				},
			},
			{
				Name:        "Extruded Circle",
				Description: "Circle extruded along Z into a cylinder",
				Nodes: []TemplateNode{
					{ID: "plane", Type: "XY Plane", X: 0, Y: 0},
					slider("radius", 0, 80, 1, 20, 5),
					{ID: "circle", Type: "Circle", X: 220, Y: 40},
					slider("height", 0, 160, 1, 50, 10),
					{ID: "up", Type: "Unit Z", X: 220, Y: 160},
					{ID: "extrude", Type: "Extrude", X: 420, Y: 100},
				},
				Edges: []TemplateEdge{
					{Source: "plane", SourcePort: "Plane", Target: "circle", TargetPort: "Plane"},
					{Source: "radius", SourcePort: "N", Target: "circle", TargetPort: "Radius"},
					{Source: "height", SourcePort: "N", Target: "up", TargetPort: "Factor"},
					{Source: "circle", SourcePort: "Circle", Target: "extrude", TargetPort: "Base"},
					{Source: "up", SourcePort: "Unit vector", Target: "extrude", TargetPort: "Direction"},
				},
			},
			{
				Name:        "Divided Circle",
				Description: "Points evenly distributed along a circle",
				Nodes: []TemplateNode{
					{ID: "plane", Type: "XY Plane", X: 0, Y: 0},
					slider("radius", 0, 80, 1, 20, 5),
					{ID: "circle", Type: "Circle", X: 220, Y: 40},
					{ID: "count", Type: "Number Slider", X: 220, Y: 140, Settings: map[string]any{"min": 2, "max": 64, "value": 12, "rounding": 1}},
					{ID: "divide", Type: "Divide Curve", X: 420, Y: 80},
				},
				Edges: []TemplateEdge{
					{Source: "plane", SourcePort: "Plane", Target: "circle", TargetPort: "Plane"},
					{Source: "radius", SourcePort: "N", Target: "circle", TargetPort: "Radius"},
					{Source: "circle", SourcePort: "Circle", Target: "divide", TargetPort: "Curve"},
					{Source: "count", SourcePort: "N", Target: "divide", TargetPort: "Count"},
				},
			},
		},
		Intents: []IntentRule{
			{Keywords: []string{"circle", "round", "ring", "disc"}, Pattern: "Circle"},
			{Keywords: []string{"add", "addition", "sum", "plus"}, Pattern: "Addition"},
			{Keywords: []string{"line", "segment", "straight"}, Pattern: "Line"},
			{Keywords: []string{"extrude", "extruded", "extrusion", "cylinder", "tube"}, Pattern: "Extruded Circle"},
			{Keywords: []string{"divide", "divided", "division", "points", "array"}, Pattern: "Divided Circle"},
		},
		Aliases: AliasTable{
			Components: map[string]string{
				"slider":      "Number Slider",
				"numslider":   "Number Slider",
				"plane":       "XY Plane",
				"xy":          "XY Plane",
				"add":         "Addition",
				"plus":        "Addition",
				"sum":         "Addition",
				"point":       "Construct Point",
				"pt":          "Construct Point",
				"unitvectorz": "Unit Z",
				"zvector":     "Unit Z",
				"box":         "Center Box",
				"divide":      "Divide Curve",
				"circleparam": "CircleParam",
				"textpanel":   "Panel",
				"translate":   "Move",
			},
			Parameters: map[string]string{
				"radius":     "Radius",
				"rad":        "Radius",
				"baseplane":  "Plane",
				"startpoint": "Start",
				"from":       "Start",
				"endpoint":   "End",
				"to":         "End",
				"dir":        "Direction",
				"direction":  "Direction",
				"count":      "Count",
				"segments":   "Count",
				"number":     "N",
				"value":      "N",
				"sum":        "Result",
				"result":     "Result",
			},
		},
	}
}
