package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"ember/internal/observ"
)

func printTimings(out io.Writer, timer *observ.Timer) {
	if out == nil || timer == nil {
		return
	}
	if _, err := fmt.Fprint(out, timer.Summary()); err != nil {
		panic(err)
	}
}

// relPath shortens target relative to base unless that would climb out of it.
func relPath(base, target string) (string, error) {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(rel, "..") {
		return target, nil
	}
	return rel, nil
}
