// Package orchestrator implements the staged multi-agent coding workflow.
//
// A Coordinator agent routes each user request through a fast planning model,
// fans the resulting plan out to specialist worker roles in up to three
// stages (creation, derivatives, evaluation) and assembles a structured
// summary. The stage machine is persisted in session state after every step,
// so an interrupted run can be resumed from its last completed stage.
package orchestrator
