package metrics

// Package metrics defines the interfaces for recording optimization run
// metrics. Sinks like PromSink and InfluxSink live in infra/metrics and can
// be combined with NewMultiSink. The factory helpers return a MultiSink
// automatically when multiple sinks are configured. Optional recorder
// interfaces cover matching groups, search candidates and stage durations.
