// Package metrics provides Prometheus metrics for the connection controller.
//
// Key metrics:
//   - Connect requests by result
//   - Status transitions and records per status
//   - Inbound and outbound message counts
package metrics
