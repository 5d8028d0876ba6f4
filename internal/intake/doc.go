// Package intake watches an inbox directory and submits dropped audio files
// to the pipeline.
//
// A file is submitted once it has been quiet for the settle delay. It is then
// moved to <inbox>/submitted/ and the task id is logged.
package intake
