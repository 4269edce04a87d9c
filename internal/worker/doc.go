// Package worker implements the fixed pool of check executors. Each worker
// loops on a timed dequeue, probes the endpoint, and hands the result to the
// writer before fetching its next item, which caps in-flight work at the
// worker count.
package worker
