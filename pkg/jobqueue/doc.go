// Package jobqueue schedules parallel application of remote write-sets: a
// bounded pool of workers may run concurrently as long as none of their
// assigned contexts conflict, with apply order preserved only within a
// conflicting set.
package jobqueue
