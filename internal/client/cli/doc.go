// Package cli implements profilectl, the command-line client for the
// profilekeeper HTTP API.
//
// Sub-commands:
//   - create:          submit a questionnaire (account plus profile answers)
//   - login:           check credentials and show the stored risk bucket
//   - update:          merge profile answers into an existing account
//   - classify:        ask the server to compute and store the risk bucket
//   - recommendations: show the picks for the stored risk bucket
//   - ping:            check that the server is reachable
//
// Values missing from flags are prompted for on stdin; passwords are read
// from the terminal without echo.
package cli
