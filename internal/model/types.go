package model

import (
	"github.com/google/uuid"
)

// PlaceDetails is enrichment returned by the place-resolution service. The
// scheduling core never interprets it; it rides along for the map and
// suggestion consumers.
type PlaceDetails struct {
	Name        string         `json:"name,omitempty"`
	Address     string         `json:"address,omitempty"`
	Rating      float64        `json:"rating,omitempty"`
	Coordinates *GeoPoint      `json:"coordinates,omitempty"`
	Photo       string         `json:"photo,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Activity is a single scheduled item within a day. TimeRange is the canonical
// on-wire form "HH:MM - HH:MM"; minute values are derived on demand.
type Activity struct {
	ID            string        `json:"id"`
	TimeRange     string        `json:"timeRange"`
	Place         string        `json:"place,omitempty"`
	Description   string        `json:"description,omitempty"`
	EstimatedCost string        `json:"estimatedCost,omitempty"`
	Tips          string        `json:"tips,omitempty"`
	PlaceDetails  *PlaceDetails `json:"placeDetails,omitempty"`
	IsNew         bool          `json:"isNew,omitempty"`
}

// Day holds an ordered activity sequence. The order is the itinerary order and
// is meaningful independently of the time values.
type Day struct {
	DayNumber  int        `json:"dayNumber"`
	Activities []Activity `json:"activities"`
}

// TripPlan is the unit of persistence and of save round-trips with the
// backend. The display fields are opaque pass-through.
type TripPlan struct {
	Name        string   `json:"name,omitempty"`
	Overview    string   `json:"overview,omitempty"`
	TotalCost   string   `json:"totalCost,omitempty"`
	PackingList []string `json:"packingList,omitempty"`
	Tips        []string `json:"tips,omitempty"`
	Days        []Day    `json:"days"`
}

// TripParams are the generation parameters the user entered; persisted next to
// the plan in the working cache, otherwise opaque here.
type TripParams struct {
	Destination string         `json:"destination,omitempty"`
	StartDate   string         `json:"startDate,omitempty"`
	DaysCount   int            `json:"daysCount,omitempty"`
	Budget      string         `json:"budget,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// EditPolicy selects how activities after a manually edited one are adjusted.
type EditPolicy string

const (
	PushPreserveGaps EditPolicy = "push_preserve_gaps"
	PushCompact      EditPolicy = "push_compact"
	KeepFollowing    EditPolicy = "keep_following"
)

func (p EditPolicy) Valid() bool {
	switch p {
	case PushPreserveGaps, PushCompact, KeepFollowing:
		return true
	}
	return false
}

// ReorderList names which of the two symmetric orderings a drag came from.
// Both reference activities by id and normalize identically.
type ReorderList string

const (
	CardList  ReorderList = "cards"
	RouteList ReorderList = "route"
)

type InsertActivityRequest struct {
	AboveIndex *int   `json:"aboveIndex,omitempty"` // nil appends
	Place      string `json:"place,omitempty"`
}

type ReorderRequest struct {
	From int         `json:"from"`
	To   int         `json:"to"`
	List ReorderList `json:"list,omitempty"`
}

type TimeEditRequest struct {
	ActivityID string     `json:"activityId"`
	Text       string     `json:"text"`
	Policy     EditPolicy `json:"policy,omitempty"`
}

type GestureRequest struct {
	ActivityID string  `json:"activityId"`
	Mode       string  `json:"mode"`           // move, resize
	Edge       string  `json:"edge,omitempty"` // top, bottom (resize only)
	DeltaPx    float64 `json:"deltaPx"`
}

type LockRequest struct {
	ActivityID string `json:"activityId"`
	Locked     bool   `json:"locked"`
}

type ResolvePlaceRequest struct {
	Query       string    `json:"query"`
	Destination string    `json:"destination,omitempty"`
	DayCenter   *GeoPoint `json:"dayCenter,omitempty"`
	Budget      string    `json:"budget,omitempty"`
	LodgingType string    `json:"lodgingType,omitempty"` // set when the query looks hotel-like
}

// MapPoint is the projection handed to the external map viewer.
type MapPoint struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"name"`
	Time string  `json:"time"`
	Seq  int     `json:"sequenceIndex"`
}

// NewID returns a fresh opaque identifier. Activity ids are generated once and
// survive reordering; they are never reused within a session.
func NewID() string { return uuid.New().String() }

// HydrateIDs assigns ids to activities that arrived from the backend without
// one. Existing ids are kept.
func (p *TripPlan) HydrateIDs() {
	for di := range p.Days {
		for ai := range p.Days[di].Activities {
			if p.Days[di].Activities[ai].ID == "" {
				p.Days[di].Activities[ai].ID = NewID()
			}
		}
	}
}

// Day returns the day with the given 1-based number, or nil.
func (p *TripPlan) Day(n int) *Day {
	for i := range p.Days {
		if p.Days[i].DayNumber == n {
			return &p.Days[i]
		}
	}
	return nil
}

// Clone returns a deep copy; drafts edit the copy, never the committed plan.
func (p *TripPlan) Clone() *TripPlan {
	if p == nil {
		return nil
	}
	out := *p
	out.PackingList = append([]string(nil), p.PackingList...)
	out.Tips = append([]string(nil), p.Tips...)
	out.Days = make([]Day, len(p.Days))
	for i := range p.Days {
		out.Days[i] = *p.Days[i].Clone()
	}
	return &out
}

func (d *Day) Clone() *Day {
	out := *d
	out.Activities = make([]Activity, len(d.Activities))
	for i, a := range d.Activities {
		out.Activities[i] = a
		if a.PlaceDetails != nil {
			pd := *a.PlaceDetails
			if a.PlaceDetails.Coordinates != nil {
				c := *a.PlaceDetails.Coordinates
				pd.Coordinates = &c
			}
			out.Activities[i].PlaceDetails = &pd
		}
	}
	return &out
}

// IndexOf returns the position of an activity id within the day, or -1.
func (d *Day) IndexOf(id string) int {
	for i := range d.Activities {
		if d.Activities[i].ID == id {
			return i
		}
	}
	return -1
}
