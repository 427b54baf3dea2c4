/*
Package decision implements the model-backed decision services of the agent
graph (planning, tool-call generation, error correction and answer
validation) on top of a provider-neutral Completer.

Answers are extracted from free text, validated against embedded JSON
Schemas and the decision's own rules, and repaired with a bounded number of
extra completions before a *domain.DecisionError is returned.
*/
package decision
