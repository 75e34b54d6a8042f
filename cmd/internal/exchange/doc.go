// Package exchange maps verified POS credentials to a team's long-lived platform API key.
//
// The flow is sequential and never retried:
//
//	narrow credentials -> verify against the POS host -> validate slug
//	-> resolve organisation -> resolve (or provision) the team for the slug
//	-> bind the POS identity to the team -> return the team's API key.
//
// Every outcome is a Result; Exchange never returns a Go error. API keys are sealed at
// rest and POS identities are stored only as keyed fingerprints.
package exchange
