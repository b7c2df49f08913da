// Package metrics records pipeline telemetry as Prometheus collectors.
package metrics
