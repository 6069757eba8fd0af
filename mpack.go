package mpack

var (
	VERSION = "dev"
	COMMIT  = "unknown"
)
