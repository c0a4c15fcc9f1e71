// Package prompts loads the named prompt templates that drive analysis and
// report composition.
//
// A catalog is a JSON or YAML document of nested string maps, for example
//
//	{
//	  "application": {
//	    "analyze_code": "Evaluate this code for {principle}:\n{code_snippet}",
//	    "generate_recommendations": "...",
//	    "format_report": "..."
//	  },
//	  "suffix": {"general": "Be concise."}
//	}
//
// Nested keys are addressed with dots (application.analyze_code). Templates
// reference values as {name}; {{ and }} produce literal braces. Every
// template is parsed once at load time so that syntax errors are reported
// before any backend call is made.
package prompts
