// Package master routes decoded LUXI calls to the query executor, the job
// queue and the cluster flags. Queries read a fresh snapshot of the
// configuration store; Reload replaces the store contents from the data
// files while keeping the runtime flags.
package master
