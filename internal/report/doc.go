// Package report composes compliance reports from analysis results.
//
// [Composer] asks the backend to lay the results out like a sample report
// and can simulate a reviewer's feedback on the outcome. [Draft] produces a
// plain layout without any backend call. [Pipeline] ties the steps
// together: load prompts and context, analyze, compose, attach feedback,
// save the document and record the run.
package report
