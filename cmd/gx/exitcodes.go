package main

// Exit codes.
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (invalid config file, bad source)
	ExitFetchError  = 3 // Data service unreachable or returned bad data
	ExitRenderError = 4 // Renderer failed or export format unavailable
	ExitNotFound    = 5 // Node or cached snapshot not found
)
