package weather

import "time"

// ActiveAt reports whether the alert is in effect at now. The window is
// [StartTime, EndTime): an alert whose EndTime equals now has expired, and an
// alert without EndTime stays in effect until its IsActive flag is cleared.
func (a Alert) ActiveAt(now time.Time) bool {
	if !a.IsActive {
		return false
	}
	if a.StartTime.After(now) {
		return false
	}
	return a.EndTime == nil || a.EndTime.After(now)
}

// ActiveFor returns the alerts of cityID that are active at now, keeping
// their input order.
func ActiveFor(alerts []Alert, cityID int64, now time.Time) []Alert {
	active := make([]Alert, 0, len(alerts))
	for _, a := range alerts {
		if a.CityID == cityID && a.ActiveAt(now) {
			active = append(active, a)
		}
	}
	return active
}

// ValidateWindow checks an alert's declared window at creation time.
func ValidateWindow(start time.Time, end *time.Time) error {
	if end != nil && !start.Before(*end) {
		return Validation("alert start time must be before end time (start %s, end %s)",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}
