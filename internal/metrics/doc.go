// Package metrics records step outcomes.
//
// Components receive a Recorder. NoopRecorder is the default and costs nothing;
// PrometheusRecorder collects into a registry that the CLI writes to a node
// exporter textfile at the end of a run. Observer adapts a Recorder to the step
// lifecycle notifications.
package metrics
