// Package netmon tracks backend reachability for the upload queue. The
// probe monitor polls a lightweight HTTP endpoint and the netlink watcher
// shortcuts the poll interval when a network interface changes state.
package netmon
