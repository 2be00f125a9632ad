// Package classifier selects the agent that should handle a user request.
//
// A Classifier receives the request text, the profiles (name and
// description) of the candidate agents and the recent conversation. The
// ModelClassifier asks a language model to call the analyzePrompt tool with
// its decision; Static always picks the same agent and is used by teams that
// route every request to one composition.
package classifier
