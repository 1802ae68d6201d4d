// Package infra groups the adapters behind the core interfaces: input file
// loaders (schedule), the zerolog logger, the Prometheus and InfluxDB metrics
// sinks and the MQTT run publisher.
package infra
