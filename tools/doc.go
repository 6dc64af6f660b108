// Package tools exposes snippet operations as callable tools.
//
// Two tools are provided in the "snippet" namespace:
//
//   - run_snippet: strip markers from a source block, execute it on the
//     remote executor, and return the classified result.
//   - view_snippet: return the code a reader sees, collapsed or expanded.
//
// The tools are listed as [model.Tool] values for catalogs, invoked
// directly through [Service.Execute], or served to MCP clients over stdio
// with [Serve].
package tools
