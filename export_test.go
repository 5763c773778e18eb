package relay

// Test-only exports for internal functions.
var (
	SplitPath        = splitPath
	CheckContentType = checkContentType
)
