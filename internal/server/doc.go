// Package server runs a local stand-in for the workflow backend.
//
// It serves the same HTTP+JSON command surface and Server-Sent Events stream
// as the real backend, driven by an in-memory Engine instead of an agent
// process. It is used for local development (conductor-mock) and by
// end-to-end tests.
//
// # Endpoints
//
//   - GET /api/events - SSE stream of workflow snapshots
//   - GET /api/state - current snapshot
//   - GET|POST /api/config - project configuration
//   - POST /api/actions/{generate-plan,refine-plan,execute,continue,cancel,retry,reset}
//   - GET /api/questions, POST /api/questions/{answer,skip}
//   - POST /api/reset - archive the project and start over
//   - GET /api/references, POST /api/references/{upload,archive}
//   - GET /api/{output,plan,references,archive,questions}/open
//   - GET /health
//
// # Authentication
//
// When Config.AuthToken is set every /api route requires
// "Authorization: Bearer <token>".
package server
