package compat

import "strings"

// Kind is the semantic category of a port's declared type.
type Kind int

const (
	KindOther Kind = iota
	KindNumeric
	KindCurve
	KindGeometry
	KindPoint
	KindVector
	KindPlane
	KindAny
)

var kindNames = map[Kind]string{
	KindOther:    "other",
	KindNumeric:  "numeric",
	KindCurve:    "curve",
	KindGeometry: "geometry",
	KindPoint:    "point",
	KindVector:   "vector",
	KindPlane:    "plane",
	KindAny:      "any",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "other"
}

var declaredKinds = map[string]Kind{
	"number":       KindNumeric,
	"integer":      KindNumeric,
	"int":          KindNumeric,
	"double":       KindNumeric,
	"float":        KindNumeric,
	"real":         KindNumeric,
	"time":         KindNumeric,
	"curve":        KindCurve,
	"circle":       KindCurve,
	"line":         KindCurve,
	"arc":          KindCurve,
	"polyline":     KindCurve,
	"rectangle":    KindCurve,
	"ellipse":      KindCurve,
	"nurbscurve":   KindCurve,
	"polycurve":    KindCurve,
	"geometry":     KindGeometry,
	"geometrybase": KindGeometry,
	"generic":      KindGeometry,
	"point":        KindPoint,
	"point3d":      KindPoint,
	"vector":       KindVector,
	"vector3d":     KindVector,
	"plane":        KindPlane,
	"any":          KindAny,
	"object":       KindAny,
}

// KindOf maps a declared type tag, as reported by the host or the knowledge
// base, onto a Kind. Host-side prefixes like "Param_" and "GH_" are ignored.
// An empty tag means the type is unknown and maps to KindAny.
func KindOf(declared string) Kind {
	t := strings.ToLower(strings.TrimSpace(declared))
	if t == "" {
		return KindAny
	}
	t = strings.TrimPrefix(t, "param_")
	t = strings.TrimPrefix(t, "gh_")
	t = strings.ReplaceAll(t, " ", "")
	if k, ok := declaredKinds[t]; ok {
		return k
	}
	return KindOther
}
