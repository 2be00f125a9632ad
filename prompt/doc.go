// Package prompt binds named placeholders into instruction templates.
//
// A placeholder is written as {{name}}. Binding is deferred: a Template keeps
// its raw text and the variables registered so far, and only substitutes them
// when rendered. Placeholders without a value are left untouched so they can be
// bound by a later call, for example per request.
package prompt
