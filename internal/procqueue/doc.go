// Package procqueue provides the bounded job queue and worker pool that
// drive ingestion. Submission is non-blocking: a full queue or a duplicate
// live job rejects the submission rather than stalling the detector.
package procqueue
