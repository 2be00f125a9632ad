// Package teams assembles the bundled multi-agent teams.
//
// Every builder receives its dependencies explicitly through Deps and
// returns a Team: an orchestrator with its agents registered, an optional
// per-request hook and the user and session ids of the interactive run.
//
// Routed teams (supervisor, translation-chain, weather, stock-research,
// deep-research) classify each request with a ModelClassifier. Chat teams
// (roundrobin-translation, human-in-loop, swarm-research) consist of one
// agent selected by a static classifier.
package teams
