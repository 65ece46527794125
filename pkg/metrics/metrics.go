// Package metrics holds the prometheus collectors shared by the API, relay
// and cron processes. Every constructor accepts a nil registerer and then
// returns a no-op recorder.
package metrics

const namespace = "dinein"

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
