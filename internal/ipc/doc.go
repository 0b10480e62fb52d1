// Package ipc exposes daemon control over JSON-RPC on a Unix domain
// socket. The CLI is the only intended client; anything needing remote
// access goes through the HTTP surface instead. Requests and responses
// reuse the api package's transport types so both channels stay in sync.
package ipc
