package domain

import (
	"time"

	"github.com/google/uuid"
)

type PinType string

// Hazard kinds.
const (
	PinRoadCrash         PinType = "road_crash"
	PinFire              PinType = "fire"
	PinMedicalEmergency  PinType = "medical_emergency"
	PinFlooding          PinType = "flooding"
	PinVolcanicActivity  PinType = "volcanic_activity"
	PinLandslide         PinType = "landslide"
	PinEarthquake        PinType = "earthquake"
	PinCivilDisturbance  PinType = "civil_disturbance"
	PinArmedConflict     PinType = "armed_conflict"
	PinInfectiousDisease PinType = "infectious_disease"
	// PinOthers is the catch-all for report classifications outside the catalogue.
	PinOthers PinType = "others"
)

// Facility kinds.
const (
	PinEvacuationCenter PinType = "evacuation_center"
	PinHealthFacility   PinType = "health_facility"
	PinPoliceStation    PinType = "police_station"
	PinFireStation      PinType = "fire_station"
	PinGovernmentOffice PinType = "government_office"
)

type Category string

const (
	CategoryAccident Category = "accident"
	CategoryFacility Category = "facility"
)

// HazardTypes is the hazard filter group in display order; PinOthers is last.
var HazardTypes = []PinType{
	PinRoadCrash,
	PinFire,
	PinMedicalEmergency,
	PinFlooding,
	PinVolcanicActivity,
	PinLandslide,
	PinEarthquake,
	PinCivilDisturbance,
	PinArmedConflict,
	PinInfectiousDisease,
	PinOthers,
}

var FacilityTypes = []PinType{
	PinEvacuationCenter,
	PinHealthFacility,
	PinPoliceStation,
	PinFireStation,
	PinGovernmentOffice,
}

var pinTypeLabels = map[PinType]string{
	PinRoadCrash:         "Road Crash",
	PinFire:              "Fire",
	PinMedicalEmergency:  "Medical Emergency",
	PinFlooding:          "Flooding",
	PinVolcanicActivity:  "Volcanic Activity",
	PinLandslide:         "Landslide",
	PinEarthquake:        "Earthquake",
	PinCivilDisturbance:  "Civil Disturbance",
	PinArmedConflict:     "Armed Conflict",
	PinInfectiousDisease: "Infectious Disease",
	PinOthers:            "Others",
	PinEvacuationCenter:  "Evacuation Centers",
	PinHealthFacility:    "Health Facilities",
	PinPoliceStation:     "Police Stations",
	PinFireStation:       "Fire Stations",
	PinGovernmentOffice:  "Government Offices",
}

func (t PinType) Valid() bool {
	_, ok := pinTypeLabels[t]
	return ok
}

func (t PinType) IsFacility() bool {
	for _, f := range FacilityTypes {
		if f == t {
			return true
		}
	}
	return false
}

// Category is always derived from the type.
func (t PinType) Category() Category {
	if t.IsFacility() {
		return CategoryFacility
	}
	return CategoryAccident
}

func (t PinType) Label() string {
	if l, ok := pinTypeLabels[t]; ok {
		return l
	}
	return string(t)
}

const MaxTitleLength = 60

type Pin struct {
	ID            uuid.UUID `json:"id"`
	Type          PinType   `json:"type"`
	Category      Category  `json:"category"`
	Title         string    `json:"title"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	LocationName  string    `json:"location_name"`
	ReportID      *string   `json:"report_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	CreatedBy     string    `json:"created_by"`
	CreatedByName string    `json:"created_by_name"`
}

// Normalize recomputes derived fields; call it on every pin read from a store.
func (p *Pin) Normalize() {
	p.Category = p.Type.Category()
}

func (p *Pin) HasReport() bool {
	return p.ReportID != nil && *p.ReportID != ""
}

// DisplayName is the title, or the location name for untitled markers.
func (p *Pin) DisplayName() string {
	if p.Title != "" {
		return p.Title
	}
	return p.LocationName
}

// Operator identifies who performs a mutation.
type Operator struct {
	ID   string
	Name string
}

type PinChangeOp string

const (
	PinCreated PinChangeOp = "created"
	PinUpdated PinChangeOp = "updated"
	PinDeleted PinChangeOp = "deleted"
)

// PinChange is one event on the realtime feed.
type PinChange struct {
	Op PinChangeOp `json:"op"`
	ID uuid.UUID   `json:"id"`
	At time.Time   `json:"at"`
}

// LatLng is a WGS-84 position in latitude-first order.
type LatLng struct {
	Lat float64 `json:"lat" validate:"lat"`
	Lng float64 `json:"lng" validate:"lng"`
}
