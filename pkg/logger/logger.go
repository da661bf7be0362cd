package logger

import (
	"log"
	"os"
)

var quiet bool

func init() {
	// Progress output is on by default; CI jobs that only want the report
	// files can set SKYTEST_QUIET.
	quiet = os.Getenv("SKYTEST_QUIET") == "true" || os.Getenv("SKYTEST_QUIET") == "1"
}

// SetQuiet allows runtime control of progress logging
func SetQuiet(q bool) {
	quiet = q
}

// Printf logs formatted output unless quiet mode is set
func Printf(format string, v ...interface{}) {
	if !quiet {
		log.Printf(format, v...)
	}
}

// Println logs output unless quiet mode is set
func Println(v ...interface{}) {
	if !quiet {
		log.Println(v...)
	}
}

// Errorf always logs, regardless of quiet mode
func Errorf(format string, v ...interface{}) {
	log.Printf("ERROR: "+format, v...)
}
