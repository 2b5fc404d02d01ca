// Package layers names the map layers of the viewer and tracks which of
// them are visible.
package layers

// Name is the stable handle of a map layer.
type Name string

const (
	Base      Name = "base"      // light gray canvas
	Aerial    Name = "aerial"    // aerial imagery with labels, shown when zoomed in
	Ponds     Name = "ponds"     // classified ponds overlay
	Water     Name = "water"     // water classification of the selected scene
	TrueColor Name = "truecolor" // true color rendering of the selected scene
	Boundary  Name = "boundary"  // study area outline
	Selection Name = "selection" // outline of the selected pond
)

// All lists the layers bottom to top.
var All = []Name{Base, Aerial, Ponds, TrueColor, Water, Boundary, Selection}

// Valid reports whether n is a known layer.
func (n Name) Valid() bool {
	for _, known := range All {
		if n == known {
			return true
		}
	}
	return false
}

// Layer is the configuration of one map layer.
type Layer struct {
	ID             Name    `json:"id" required:"false" doc:"Layer handle" example:"ponds" enum:"base,aerial,ponds,truecolor,water,boundary,selection"`
	Title          string  `json:"title" required:"true" minLength:"1" maxLength:"100" doc:"Display name" example:"Ponds"`
	Kind           string  `json:"kind" required:"true" enum:"xyz,bing,vector" doc:"Source kind" example:"xyz"`
	URL            string  `json:"url,omitempty" doc:"Tile URL template for xyz layers" example:"https://services.arcgisonline.com/ArcGIS/rest/services/Canvas/World_Light_Gray_Base/MapServer/tile/{z}/{y}/{x}"`
	ImagerySet     string  `json:"imagerySet,omitempty" doc:"Imagery set for bing layers" example:"AerialWithLabels"`
	Stroke         string  `json:"stroke,omitempty" doc:"Stroke color for vector layers (CSS)" example:"red"`
	StrokeWidth    float64 `json:"strokeWidth,omitempty" minimum:"0" maximum:"20" doc:"Stroke width for vector layers"`
	Opacity        float64 `json:"opacity" minimum:"0" maximum:"1" doc:"Layer opacity (0-1)"`
	DefaultVisible bool    `json:"defaultVisible" doc:"Whether the layer is visible when a viewer opens"`
}

// Defaults returns the built-in catalog.
func Defaults() map[Name]Layer {
	return map[Name]Layer{
		Base: {
			ID: Base, Title: "Light gray canvas", Kind: "xyz", Opacity: 1, DefaultVisible: true,
			URL: "https://services.arcgisonline.com/ArcGIS/rest/services/Canvas/World_Light_Gray_Base/MapServer/tile/{z}/{y}/{x}",
		},
		Aerial: {
			ID: Aerial, Title: "Aerial imagery", Kind: "bing", ImagerySet: "AerialWithLabels", Opacity: 1,
		},
		Ponds: {
			ID: Ponds, Title: "Ponds", Kind: "xyz", Opacity: 1, DefaultVisible: true,
		},
		TrueColor: {
			ID: TrueColor, Title: "True color scene", Kind: "xyz", Opacity: 1, DefaultVisible: true,
		},
		Water: {
			ID: Water, Title: "Water classification", Kind: "xyz", Opacity: 1, DefaultVisible: true,
		},
		Boundary: {
			ID: Boundary, Title: "Study area", Kind: "vector", Stroke: "red", StrokeWidth: 1, Opacity: 1, DefaultVisible: true,
		},
		Selection: {
			ID: Selection, Title: "Selected pond", Kind: "vector", Stroke: "black", StrokeWidth: 8, Opacity: 1, DefaultVisible: true,
		},
	}
}
