// Package builtin provides the tools used by the bundled teams: a weather
// mock, stock data and news mocks returning fixed values, and a web search
// tool backed by a pluggable Searcher.
package builtin
