// Package client talks to the profilekeeper HTTP API on behalf of the CLI.
//
// # Overview
//
// Client wraps the submission routes (create, login, update) and the risk
// routes (classify, recommendations) behind typed methods. Every call takes
// a context and is bounded by the configured request timeout.
//
// # Error Handling
//
// A non-2xx response becomes an *APIError carrying the status and the
// server's message. APIError matches the sentinel errors with errors.Is:
// ErrUnauthorized for 401, common.ErrorNotFound for 404, common.ErrNoBucket
// for 409, common.ErrBadRequest for 400 and common.ErrUpstream for 502.
// Transport failures match ErrUnavailable.
package client
