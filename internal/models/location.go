package models

import "time"

// Location is a point with optional address metadata. Coordinates are
// decimal degrees.
type Location struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Address    string  `json:"address,omitempty"`
	City       string  `json:"city,omitempty"`
	District   string  `json:"district,omitempty"`
	PostalCode string  `json:"postal_code,omitempty"`
	Country    string  `json:"country,omitempty"`
}

// Dimensions of a load in meters.
type Dimensions struct {
	LengthM float64 `json:"length_m"`
	WidthM  float64 `json:"width_m"`
	HeightM float64 `json:"height_m"`
}

func (d Dimensions) VolumeM3() float64 {
	return d.LengthM * d.WidthM * d.HeightM
}

// FitsIn reports whether these dimensions fit inside the container's.
func (d Dimensions) FitsIn(container Dimensions) bool {
	return d.LengthM <= container.LengthM &&
		d.WidthM <= container.WidthM &&
		d.HeightM <= container.HeightM
}

// TimeSlot is a daily working window expressed as minutes since midnight.
type TimeSlot struct {
	StartMinute int  `json:"start_minute"`
	EndMinute   int  `json:"end_minute"`
	Working     bool `json:"working"`
}

func (s TimeSlot) contains(t time.Time) bool {
	if !s.Working {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	return m >= s.StartMinute && m <= s.EndMinute
}

// WorkingHours holds one slot per weekday, indexed by time.Weekday
// (Sunday = 0).
type WorkingHours struct {
	Days [7]TimeSlot `json:"days"`
}

// AllDay returns a schedule with every day fully available.
func AllDay() *WorkingHours {
	var wh WorkingHours
	for i := range wh.Days {
		wh.Days[i] = TimeSlot{StartMinute: 0, EndMinute: 24*60 - 1, Working: true}
	}
	return &wh
}

func (w *WorkingHours) AvailableAt(t time.Time) bool {
	return w.Days[int(t.Weekday())].contains(t)
}
