package dto

// LockSlotsRequest freezes or thaws specific slots of a timetable.
type LockSlotsRequest struct {
	SlotIDs []string `json:"slotIds" validate:"required,min=1,dive,uuid"`
}

// LockSlotsResponse reports how many slots changed state.
type LockSlotsResponse struct {
	Changed int `json:"changed"`
}

// SubstituteQuery asks for ranked substitutes for one slot.
type SubstituteQuery struct {
	SlotID       string `form:"slotId" validate:"required,uuid"`
	DepartmentID string `form:"departmentId" validate:"omitempty,uuid"`
	Limit        int    `form:"limit" validate:"omitempty,min=1,max=50"`
}
