// Package gitignore implements gitignore pattern matching, as documented
// at https://git-scm.com/docs/gitignore, for the file watcher to decide
// which filesystem events warrant a re-embed.
//
// Supports:
//   - Basic and wildcard patterns (*.log, temp/, *, ?, **)
//   - Rooted patterns (/build) and negation (!important.log)
//   - Directory-only patterns (build/)
//   - Nested .gitignore files, scoped by base directory
//   - Concurrent Match calls from multiple watcher goroutines
//
// A collection's watcher keeps one Matcher loaded with the project's
// .gitignore files plus vecdb's own storage paths (snapshots/, *.vecdb),
// so index artifacts never reprocess themselves:
//
//	m := gitignore.New()
//	m.AddFromFile(".gitignore", "")
//	m.AddPattern("snapshots/")
//	m.AddPattern("*.vecdb")
//
//	if m.Match("src/error.log", false) {
//	    // event skipped, not queued for re-embedding
//	}
//
// Project subdirectories with their own .gitignore are loaded with a
// base so their patterns only apply under that subtree:
//
//	m.AddFromFile("src/.gitignore", "src")
package gitignore
