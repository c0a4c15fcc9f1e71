// Dawn is a CLI and HTTP service that scores source code against
// engineering principles with LLM providers and writes Markdown compliance
// reports.
//
// Every snippet is evaluated against every principle, once for an analysis
// and once for recommendations. The results are then composed into a report
// that follows the layout of a sample report.
//
// Usage:
//
//	dawn report --snippets snippets.yaml            # report on a snippet list
//	dawn report --source ./src --out -              # discover snippets, print the report
//	dawn report --source . --out s3://bucket/r.md   # store the report in an object store
//	dawn serve --addr :8080                         # POST /v1/reports
//	dawn history                                    # recent runs
package main
