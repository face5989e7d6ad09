// Package memory provides in-process implementations of the notification store
// and the user directory. It backs tests, the load generator and single-node
// deployments that do not need persistence.
package memory
