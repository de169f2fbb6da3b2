package main

// Exit codes.
const (
	exitOK      = 0
	exitFatal   = 1
	exitInvalid = 2
)
