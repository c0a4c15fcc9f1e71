// Package snippets collects the code to analyze, either from a snippet list
// file (JSON or YAML) or by discovering source files under a directory with
// doublestar include and exclude patterns.
package snippets
