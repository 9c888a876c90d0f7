package emby

// ViewsResponse represents the paginated view list from Emby
type ViewsResponse struct {
	Items            []Category `json:"Items"`
	TotalRecordCount int        `json:"TotalRecordCount"`
}

// Category represents a top-level library view (Movies, TV Shows, ...)
type Category struct {
	ID             string `json:"Id"`
	Name           string `json:"Name"`
	CollectionType string `json:"CollectionType,omitempty"` // "movies", "tvshows"
	Type           string `json:"Type,omitempty"`
}

// MediaItem represents a recently added item from Emby (movie, show,
// episode). The field set mirrors the Fields list requested on
// /Items/Latest.
type MediaItem struct {
	ID              string   `json:"Id"`
	Name            string   `json:"Name"`
	Type            string   `json:"Type,omitempty"`
	SeriesName      string   `json:"SeriesName,omitempty"`
	CommunityRating float64  `json:"CommunityRating,omitempty"`
	OfficialRating  string   `json:"OfficialRating,omitempty"`
	Studios         []Studio `json:"Studios,omitempty"`
	PremiereDate    string   `json:"PremiereDate,omitempty"`
	Genres          []string `json:"Genres,omitempty"`
	ChildCount      int      `json:"ChildCount,omitempty"`
	ProductionYear  int      `json:"ProductionYear,omitempty"`
	DateCreated     string   `json:"DateCreated,omitempty"`
	RunTimeTicks    int64    `json:"RunTimeTicks,omitempty"` // Duration in 100-nanosecond units
}

// Studio is a production studio attached to an item
type Studio struct {
	Name string `json:"Name"`
	ID   int64  `json:"Id,omitempty"`
}
