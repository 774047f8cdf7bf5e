package domain

import "time"

// Publication status of a heatwave notice.
const (
	StatusNew     = "new"
	StatusUpdated = "updated"
)

// HeatwaveNotice announces a newly detected or changed heatwave at a site.
type HeatwaveNotice struct {
	ID           string    `json:"id"`
	Location     string    `json:"location"`
	LocationName string    `json:"location_name"`
	Status       string    `json:"status"`
	CategoryName string    `json:"category_name"`
	Event        Event     `json:"event"`
	DetectedAt   time.Time `json:"detected_at"`
}

// EventID identifies a heatwave by site and start date. An ongoing event keeps
// its ID while it grows.
func EventID(location, start string) string {
	return location + "|" + start
}

// NewHeatwaveNotice stamps an event for publication at the current clock time.
func NewHeatwaveNotice(loc Location, ev Event, status string) HeatwaveNotice {
	return HeatwaveNotice{
		ID:           EventID(loc.Key, ev.Start),
		Location:     loc.Key,
		LocationName: loc.Name,
		Status:       status,
		CategoryName: ev.Category.String(),
		Event:        ev,
		DetectedAt:   clock.Now().UTC(),
	}
}
