package domain

// HeatPoint is one weighted coordinate of the heatmap source.
type HeatPoint struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Weight float64 `json:"weight"`
}
