package render

// YlOrRd is the nine class ColorBrewer yellow-orange-red ramp.
var YlOrRd = []string{
	"#ffffcc", "#ffeda0", "#fed976", "#feb24c", "#fd8d3c",
	"#fc4e2a", "#e31a1c", "#bd0026", "#800026",
}

var ylOrRdByClasses = map[int][]string{
	6: {"#ffffb2", "#fed976", "#feb24c", "#fd8d3c", "#f03b20", "#bd0026"},
	7: {"#ffffb2", "#fed976", "#feb24c", "#fd8d3c", "#fc4e2a", "#e31a1c", "#b10026"},
}

// Palette returns k YlOrRd colors, light to dark.
func Palette(k int) []string {
	if k <= 0 {
		return nil
	}
	if p, ok := ylOrRdByClasses[k]; ok {
		out := make([]string, k)
		copy(out, p)
		return out
	}
	out := make([]string, k)
	for i := range out {
		idx := 0
		if k > 1 {
			idx = i * (len(YlOrRd) - 1) / (k - 1)
		}
		out[i] = YlOrRd[idx]
	}
	return out
}
