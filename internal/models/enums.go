package models

// LoadStatus tracks a load through its lifecycle. Terminal states are
// Completed and Cancelled.
type LoadStatus string

const (
	LoadDraft          LoadStatus = "draft"
	LoadPublished      LoadStatus = "published"
	LoadMatched        LoadStatus = "matched"
	LoadDriverAccepted LoadStatus = "driver_accepted"
	LoadPickedUp       LoadStatus = "picked_up"
	LoadInTransit      LoadStatus = "in_transit"
	LoadDelivered      LoadStatus = "delivered"
	LoadCompleted      LoadStatus = "completed"
	LoadCancelled      LoadStatus = "cancelled"
	LoadExpired        LoadStatus = "expired"
)

func (s LoadStatus) Terminal() bool {
	return s == LoadCompleted || s == LoadCancelled || s == LoadExpired
}

type MatchStatus string

const (
	MatchProposed       MatchStatus = "proposed"
	MatchDriverNotified MatchStatus = "driver_notified"
	MatchDriverAccepted MatchStatus = "driver_accepted"
	MatchDriverRejected MatchStatus = "driver_rejected"
	MatchExpired        MatchStatus = "expired"
	MatchConfirmed      MatchStatus = "confirmed"
	MatchCompleted      MatchStatus = "completed"
	MatchCancelled      MatchStatus = "cancelled"
)

// Active reports whether a match in this status owns its load and driver.
// At most one active match per load and per driver is permitted.
func (s MatchStatus) Active() bool {
	return s == MatchDriverAccepted || s == MatchConfirmed
}

func (s MatchStatus) Terminal() bool {
	return s == MatchDriverRejected || s == MatchExpired || s == MatchCompleted || s == MatchCancelled
}

// Expirable reports whether the expiry sweep may still act on this status.
func (s MatchStatus) Expirable() bool {
	return s == MatchProposed || s == MatchDriverNotified
}

type DriverStatus string

const (
	DriverAvailable   DriverStatus = "available"
	DriverBusy        DriverStatus = "busy"
	DriverOnDuty      DriverStatus = "on_duty"
	DriverOnBreak     DriverStatus = "on_break"
	DriverOffline     DriverStatus = "offline"
	DriverUnavailable DriverStatus = "unavailable"
)

type LoadType string

const (
	LoadTypeGeneralCargo LoadType = "general_cargo"
	LoadTypeFurniture    LoadType = "furniture"
	LoadTypeVehicle      LoadType = "vehicle"
	LoadTypeFragile      LoadType = "fragile"
	LoadTypeLiquid       LoadType = "liquid"
	LoadTypeHazardous    LoadType = "hazardous"
	LoadTypeRefrigerated LoadType = "refrigerated"
	LoadTypeOversized    LoadType = "oversized"
	LoadTypeContainer    LoadType = "container"
	LoadTypeBulk         LoadType = "bulk"
	LoadTypeLivestock    LoadType = "livestock"
	LoadTypeMachinery    LoadType = "machinery"
	LoadTypeElectronics  LoadType = "electronics"
	LoadTypeFood         LoadType = "food"
	LoadTypeOther        LoadType = "other"
)

// SpecialRequirement is a flag attached to a load or an individual stop.
type SpecialRequirement string

const (
	ReqNone                  SpecialRequirement = "none"
	ReqColdChain             SpecialRequirement = "cold_chain"
	ReqTemperatureControlled SpecialRequirement = "temperature_controlled"
	ReqHazardous             SpecialRequirement = "hazardous"
	ReqOversized             SpecialRequirement = "oversized"
	ReqFragile               SpecialRequirement = "fragile"
	ReqHighValue             SpecialRequirement = "high_value"
	ReqSecurityEscort        SpecialRequirement = "security_escort"
	ReqExpressDelivery       SpecialRequirement = "express_delivery"
	ReqAppointmentRequired   SpecialRequirement = "appointment_required"
	ReqDocumentsRequired     SpecialRequirement = "documents_required"
	ReqInsuranceRequired     SpecialRequirement = "insurance_required"
	ReqGPSTracking           SpecialRequirement = "gps_tracking"
	ReqLiveAnimal            SpecialRequirement = "live_animal"
	ReqFoodGrade             SpecialRequirement = "food_grade"
	ReqMedicalGrade          SpecialRequirement = "medical_grade"
	ReqFlammableLiquid       SpecialRequirement = "flammable_liquid"
	ReqCorrosiveMaterial     SpecialRequirement = "corrosive_material"
	ReqRefrigerated          SpecialRequirement = "refrigerated"
	ReqContainer             SpecialRequirement = "container"
)

// Hazard reports whether the requirement belongs to the hazardous family
// that demands an ADR-licensed driver and vehicle.
func (r SpecialRequirement) Hazard() bool {
	return r == ReqHazardous || r == ReqFlammableLiquid || r == ReqCorrosiveMaterial
}

// Refrigeration reports whether the requirement demands a cooled vehicle.
func (r SpecialRequirement) Refrigeration() bool {
	return r == ReqRefrigerated || r == ReqColdChain || r == ReqTemperatureControlled
}

type StopType string

const (
	StopPickup   StopType = "pickup"
	StopDelivery StopType = "delivery"
	StopBoth     StopType = "both"
)

type StopStatus string

const (
	StopPlanned    StopStatus = "planned"
	StopInProgress StopStatus = "in_progress"
	StopArrived    StopStatus = "arrived"
	StopLoading    StopStatus = "loading"
	StopCompleted  StopStatus = "completed"
	StopSkipped    StopStatus = "skipped"
	StopFailed     StopStatus = "failed"
	StopDelayed    StopStatus = "delayed"
)
