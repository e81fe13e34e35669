// Package jobs names the message types of the platform queue, defines their
// payloads and offers typed producer wrappers that build deterministic dedupe
// keys of the form "<prefix>-<entityId>".
package jobs
