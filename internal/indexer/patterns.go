package indexer

// DefaultExcludePatterns lists substrings that cause a path to be skipped
// during indexing: version control directories, build artifacts, package
// manager caches, and common binary/temp file suffixes. It is the default
// of indexer.DefaultConfig; the CLI commands pass rag.indexer.exclude_patterns
// instead, which replaces this list (its own default in pkg/config is a
// shorter list without the binary suffixes).
func DefaultExcludePatterns() []string {
	return []string{
		".git",
		".svn",
		".hg",
		"node_modules",
		"vendor",
		"target",
		"dist",
		"build",
		".cache",
		"__pycache__",
		".venv",
		"venv",
		".DS_Store",
		".o",
		".so",
		".dll",
		".exe",
		".bin",
		".png",
		".jpg",
		".jpeg",
		".gif",
		".pdf",
		".zip",
		".tar",
		".gz",
		".lock",
	}
}
