package main

// Exit codes
const (
	ExitSuccess       = 0 // Success
	ExitError         = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError   = 2 // Configuration error (missing config, no library found)
	ExitDataError     = 3 // Data error (malformed bookmark, unexpected database schema)
	ExitAborted       = 4 // User declined the confirmation prompt
	ExitPhotosRunning = 5 // Photos.app is open on the library
)
