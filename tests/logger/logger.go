// Package logger writes test progress to the Ginkgo writer so it only
// shows up for failing specs or with -v.
package logger

import (
	"fmt"
	"time"

	"github.com/onsi/ginkgo/v2"
)

// Log writes a timestamped line to GinkgoWriter
func Log(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(ginkgo.GinkgoWriter, "%s %s\n", time.Now().Format("15:04:05.000"), msg)
}
