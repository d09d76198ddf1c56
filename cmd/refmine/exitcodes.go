package main

// Exit codes returned by every command.
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (bad config file, invalid flag values)
	ExitDataError   = 3 // Data error (unreadable PDF, no reference section found)
)
