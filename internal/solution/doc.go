// Package solution holds the decoded result of one remote solve.
//
// A Solution is keyed by exchange name: the name an element carried while
// the job was in flight. Callers resolve names back to elements through the
// index captured by the naming scope.
package solution
