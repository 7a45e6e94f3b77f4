// Package harness runs solve scenarios end to end against an in-process
// fake of the deployment jobs API.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: lp_generated_names
//	description: "Unnamed elements resolve after their names are restored"
//	mode: solve                  # solve | solve_cp | refine_conflict | feasopt
//	policy: assign-missing       # naming policy
//	tokens: [a, b]               # generated name tokens, in order
//	model:
//	  name: demo
//	  format: lp
//	  elements:
//	    - { id: x, kind: variable }              # no name
//	    - { id: c, kind: constraint, constraint: linear }
//	    - { id: k, kind: variable, name: kept }
//	service:
//	  states: [running, completed]
//	  outputs:
//	    - { id: solution.xml, file: solution.xml }
//	expect:
//	  status: Optimal
//	assertions:
//	  - { type: value, element: x, value: 2.5 }
//	  - { type: job_states, states: [created, polling, completed, deleted] }
//
// Output files are resolved relative to the scenario file and base64
// encoded into the job's output_data.
//
// # Assertion Types
//
//   - value, dual, slack, reduced_cost: a numeric result for an element
//   - kpi: a named KPI
//   - conflict: the conflict status of an element
//   - interval, sequence: CP results for an element
//   - missing: the element has no value in the result
//   - job_states: the recorded job transitions, in order
//   - fetch_count, delete_count: requests the fake service served
//   - submitted_model: substrings the submitted model must contain
//   - ledger_state: the final state of the job in the ledger
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory ledger, a deterministic clock, a
// sleeper that never waits and fixed name tokens, so the same scenario
// always yields the same trace and the same golden snapshot.
//
// Names are checked after every run: each element must carry exactly the
// name it had before the solve, whether the solve succeeded or not.
package harness
