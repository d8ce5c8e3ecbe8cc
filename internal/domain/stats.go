package domain

type PinStats struct {
	Total      int64             `json:"total"`
	Accidents  int64             `json:"accidents"`
	Facilities int64             `json:"facilities"`
	ByType     map[PinType]int64 `json:"by_type"`
	Minutes    int               `json:"minutes"`
}

type StatsRequest struct {
	Minutes int `query:"minutes" validate:"min=1,max=43200"` // 30 days max
}
