package domain

// HotelRecord is one listing from the upstream catalog. Immutable once loaded;
// lives only for the duration of a single scan.
type HotelRecord struct {
	ID        int64
	Name      string
	Address   string
	Lat, Lon  *float64
	Stars     *int
	CityID    int64
	CountryID int64
}

// HasCoords reports whether both coordinates are present.
func (h HotelRecord) HasCoords() bool { return h.Lat != nil && h.Lon != nil }

// HotelDetail carries the contact fields fetched lazily for hotels that
// appear in at least one candidate pair.
type HotelDetail struct {
	HotelID int64  `json:"hotel_id"`
	Site    string `json:"site"`
	Phone   string `json:"phone"`
}

// HasContact reports whether the detail carries any contact field at all.
func (d HotelDetail) HasContact() bool { return d.Site != "" || d.Phone != "" }

type Country struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type City struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CountryID int64  `json:"country_id"`
}
