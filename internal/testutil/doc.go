// Package testutil provides shared test utilities for conductor.
//
// # Fixtures
//
// The fixtures.go file provides sample data for testing:
//
//   - SampleQuestions() - the questions an execution stops on
//   - SampleProjectConfig() - a complete project form
//   - SampleReferences() - a reference folder listing
//   - SampleSnapshot(state) - a snapshot in the given state with sensible fields
//
// # Environment Helpers
//
// The env.go file provides test environment setup:
//
//   - SetupHome(t) - points HOME at a temp directory
//   - WriteTestFile(t, base, path, content) - writes a file in test dir
//   - MustMarshalJSON(t, v) - marshals to JSON or fails test
//   - MustUnmarshalJSON(t, data, v) - unmarshals JSON or fails test
//
// # Assertions
//
// The assertions.go file provides custom test assertions:
//
//   - AssertState(t, snap, state) - checks the workflow state
//   - AssertPhase(t, snap, phase, total) - checks phase progress
//   - AssertHasError(t, snap) - checks the error detail is set
//   - AssertAnswers(t, questions, answers) - checks a submitted answer map
//
// # Timeouts
//
// Context(t, fallback) returns a context that ends before the test deadline
// and is cancelled when the test finishes.
package testutil
