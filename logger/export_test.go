package logger

import "os"

var osExit = os.Exit
