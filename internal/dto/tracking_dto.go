package dto

// TrackingQuery captures the query string of the tracking board endpoints.
type TrackingQuery struct {
	View   string `query:"view"`
	Status string `query:"status"`
}
