// Package tracking models the eight production stages a custom apparel
// order moves through and maps the raw status string returned by the
// order-tracking webhook onto them.
package tracking

import "strings"

// Stage is one step of the order pipeline, in display order.
type Stage struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Stages lists the pipeline in order. The first stage doubles as the
// fallback for unknown or missing statuses.
var Stages = []Stage{
	{ID: "designing", Title: "Designing", Description: "The design process has started."},
	{ID: "layout-department", Title: "Layout Department", Description: "The design is with the layout department."},
	{ID: "print-press-department", Title: "Print & Press Dept.", Description: "The order is with the printing department."},
	{ID: "manufacturing-department", Title: "Manufacturing Dept.", Description: "The order is in the manufacturing stage."},
	{ID: "cleaning-packing", Title: "Cleaning & Packing", Description: "The order is being cleaned and packaged."},
	{ID: "ready-for-dispatch", Title: "Ready for Dispatch/Collection", Description: "The order is complete and ready for the customer."},
	{ID: "out-for-delivery", Title: "Out for Delivery", Description: "The order has left the facility for delivery."},
	{ID: "delivered-collected", Title: "Delivered/Collected", Description: "Your order has been successfully delivered or collected."},
}

var statusToStageID = map[string]string{
	"designing":                     "designing",
	"layout department":             "layout-department",
	"print & press department":      "print-press-department",
	"manufacturing department":      "manufacturing-department",
	"cleaning & packing":            "cleaning-packing",
	"ready for dispatch/collection": "ready-for-dispatch",
	"out for delivery":              "out-for-delivery",
	"delivered/collected":           "delivered-collected",
}

// MapStatus resolves a raw remote status to its stage and index.
// Matching is case-insensitive; unknown statuses fall back to the first
// stage rather than erroring, so a new upstream label degrades gracefully.
func MapStatus(status string) (Stage, int) {
	id, ok := statusToStageID[strings.ToLower(strings.TrimSpace(status))]
	if !ok {
		id = Stages[0].ID
	}
	for i, st := range Stages {
		if st.ID == id {
			return st, i
		}
	}
	return Stages[0], 0
}

// StageState classifies a stage relative to the order's current stage.
type StageState string

const (
	StageCompleted StageState = "completed"
	StageCurrent   StageState = "current"
	StageFuture    StageState = "future"
)

// Classify returns the state of the stage at index relative to current.
func Classify(index, current int) StageState {
	switch {
	case index < current:
		return StageCompleted
	case index == current:
		return StageCurrent
	default:
		return StageFuture
	}
}
