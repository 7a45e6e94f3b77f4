// Package decode turns the attachments of a finished job into a Solution.
//
// Two formats are understood: the solver-native XML solution (and its
// conflict variant), read as a token stream by a small state machine, and the
// constraint-programming JSON solution, read as a tree. Both take a Known
// filter and drop every value whose name the caller does not hold.
//
// No partial Solution is ever returned: any error discards everything
// decoded so far.
package decode
