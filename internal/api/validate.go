package api

import (
	"fmt"

	"tripweaver/internal/model"
	"tripweaver/internal/timetext"
)

func validateReorderRequest(req *model.ReorderRequest, n int) error {
	if req.From < 0 || req.From >= n {
		return fmt.Errorf("from index %d out of range", req.From)
	}
	if req.To < 0 || req.To >= n {
		return fmt.Errorf("to index %d out of range", req.To)
	}
	if req.List != "" && req.List != model.CardList && req.List != model.RouteList {
		return fmt.Errorf("unknown list: %s", req.List)
	}
	return nil
}

func validateTimeEditRequest(req *model.TimeEditRequest) error {
	if req.ActivityID == "" {
		return fmt.Errorf("activityId required")
	}
	if req.Policy != "" && !req.Policy.Valid() {
		return fmt.Errorf("unknown policy: %s", req.Policy)
	}
	if !timetext.IsValidRangeText(req.Text) {
		return fmt.Errorf("time range must be HH:MM - HH:MM")
	}
	return nil
}

func validateGestureRequest(req *model.GestureRequest) error {
	if req.ActivityID == "" {
		return fmt.Errorf("activityId required")
	}
	switch req.Mode {
	case "move":
	case "resize":
		if req.Edge != "top" && req.Edge != "bottom" {
			return fmt.Errorf("resize needs edge top or bottom")
		}
	default:
		return fmt.Errorf("unknown gesture mode: %s", req.Mode)
	}
	return nil
}

func validateResolvePlaceRequest(req *model.ResolvePlaceRequest) error {
	if req.Query == "" {
		return fmt.Errorf("query required")
	}
	return nil
}
