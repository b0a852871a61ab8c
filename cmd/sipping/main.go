// Package main enables sipping to execute as a CLI tool
package main

import (
	"os"

	"github.com/pouriyajamshidi/sipping/internal/app"
)

func main() {
	os.Exit(app.Run())
}
